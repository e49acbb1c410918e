package storage

import (
	"encoding/json"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
)

type ExportData struct {
	Meta      RunMetadata          `json:"meta"`
	Times     []float64            `json:"times"`
	Series    map[string][]float64 `json:"series"`
	Spectator *ExportBody          `json:"spectator,omitempty"`
	Bodies    []ExportBody         `json:"bodies,omitempty"`
}

type ExportBody struct {
	Position [3]float32 `json:"position"`
	Size     float32    `json:"size"`
	Velocity [3]float32 `json:"velocity"`
}

func exportBody(p, v mgl32.Vec4) ExportBody {
	return ExportBody{
		Position: [3]float32{p[0], p[1], p[2]},
		Size:     p[3],
		Velocity: [3]float32{v[0], v[1], v[2]},
	}
}

// ExportJSON writes a run as one JSON document. Bodies are included only
// when the run carries a snapshot.
func ExportJSON(w io.Writer, run Run) error {
	data := ExportData{
		Meta:   run.Meta,
		Times:  run.Times,
		Series: run.Series,
	}
	if run.Spectator != (dynamo.Tracking{}) {
		sp := exportBody(run.Spectator.Position, run.Spectator.Velocity)
		data.Spectator = &sp
	}
	if n := run.Snapshot.Len(); n > 0 {
		data.Bodies = make([]ExportBody, n)
		for i := range data.Bodies {
			data.Bodies[i] = exportBody(run.Snapshot.Positions[i], run.Snapshot.Velocities[i])
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
