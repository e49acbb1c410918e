package partition

import (
	"fmt"
	"strings"

	"github.com/san-kum/starfield/internal/dynamo"
)

// Block owns body indices [Begin, Split).
type Block struct {
	Begin   int
	Split   int
	Collide bool
}

func (b Block) Len() int { return b.Split - b.Begin }

func (b Block) Contains(i int) bool { return i >= b.Begin && i < b.Split }

func (b Block) String() string {
	if b.Collide {
		return fmt.Sprintf("[%d,%d)*", b.Begin, b.Split)
	}
	return fmt.Sprintf("[%d,%d)", b.Begin, b.Split)
}

// Stage selects what the kernel does for the blocks of a pass.
type Stage int

const (
	// StageIntegrate accumulates gravity and writes new positions and
	// velocities. Collide blocks also resolve collisions inline.
	StageIntegrate Stage = iota
	// StageResolve applies collision impulses on top of an earlier
	// integrate pass. Blocks without Collide are no-ops.
	StageResolve
)

func (s Stage) String() string {
	switch s {
	case StageIntegrate:
		return "integrate"
	case StageResolve:
		return "resolve"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Pass is one synchronization unit.
type Pass struct {
	Stage  Stage
	Blocks []Block
}

// Colliding counts the blocks with collision handling enabled.
func (p Pass) Colliding() int {
	n := 0
	for _, b := range p.Blocks {
		if b.Collide {
			n++
		}
	}
	return n
}

// Colliders marks every body of [0, numBodies) that lies in a colliding
// block of p. A pair only collides when both bodies are marked.
func (p Pass) Colliders(numBodies int) []bool {
	mask := make([]bool, numBodies)
	for _, b := range p.Blocks {
		if !b.Collide {
			continue
		}
		for i := max(b.Begin, 0); i < min(b.Split, numBodies); i++ {
			mask[i] = true
		}
	}
	return mask
}

func (p Pass) String() string {
	parts := make([]string, len(p.Blocks))
	for i, b := range p.Blocks {
		parts[i] = b.String()
	}
	return p.Stage.String() + " " + strings.Join(parts, " ")
}

// InconsistencyError describes the first place a pass fails to tile the range.
type InconsistencyError struct {
	Pass      int
	Block     int
	NumBodies int
	Reason    string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("partition: pass %d block %d of %d bodies: %s", e.Pass, e.Block, e.NumBodies, e.Reason)
}

func (e *InconsistencyError) Unwrap() error {
	return dynamo.ErrPartition
}
