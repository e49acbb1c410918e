package partition

import (
	"fmt"

	"github.com/san-kum/starfield/internal/dynamo"
)

// CollidePolicy decides whether a block gets collision handling. It must be
// a pure function of its arguments so plans are reproducible.
type CollidePolicy interface {
	Collide(begin, split, numBodies int) bool
}

// Never disables collisions everywhere.
type Never struct{}

func (Never) Collide(begin, split, numBodies int) bool { return false }

// Always enables collisions for every block.
type Always struct{}

func (Always) Collide(begin, split, numBodies int) bool { return true }

// Pivot enables collisions for blocks that reach within Reach indices of
// Index, the first body of the last galaxy. Bodies near the pivot belong to
// the two galaxies that were placed next to each other.
type Pivot struct {
	Index int
	Reach int
}

func (p Pivot) Collide(begin, split, numBodies int) bool {
	if p.Index <= 0 || p.Index >= numBodies {
		return false
	}
	return begin < p.Index+p.Reach && split > p.Index-p.Reach
}

// PolicyFunc adapts a function to CollidePolicy.
type PolicyFunc func(begin, split, numBodies int) bool

func (f PolicyFunc) Collide(begin, split, numBodies int) bool { return f(begin, split, numBodies) }

// Strategy selects how collision handling is laid out across passes.
type Strategy int

const (
	// Inline runs one integrate pass; collide blocks resolve inline.
	Inline Strategy = iota
	// Split runs an integrate pass without collisions followed by a finer
	// grained resolve pass.
	Split
)

func (s Strategy) String() string {
	switch s {
	case Inline:
		return "inline"
	case Split:
		return "split"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configuration name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "inline":
		return Inline, nil
	case "split":
		return Split, nil
	}
	return Inline, fmt.Errorf("strategy %q: %w", name, dynamo.ErrUnknownName)
}
