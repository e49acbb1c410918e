package partition

import (
	"sort"

	"github.com/san-kum/starfield/internal/dynamo"
)

// Partitioner produces deterministic pass plans for a body count.
type Partitioner struct {
	granularity        int
	resolveGranularity int
	strategy           Strategy
	policy             CollidePolicy
}

type Option func(*Partitioner)

func WithStrategy(s Strategy) Option {
	return func(p *Partitioner) { p.strategy = s }
}

func WithPolicy(policy CollidePolicy) Option {
	return func(p *Partitioner) { p.policy = policy }
}

// WithResolveGranularity sets the block size of the resolve pass used by
// the Split strategy. Zero keeps the default of half the block size.
func WithResolveGranularity(g int) Option {
	return func(p *Partitioner) { p.resolveGranularity = g }
}

// New creates a Partitioner that cuts blocks of granularity bodies.
func New(granularity int, opts ...Option) (*Partitioner, error) {
	if granularity <= 0 {
		return nil, &dynamo.ConfigError{Field: "block_size", Value: granularity, Reason: "must be positive"}
	}
	p := &Partitioner{
		granularity: granularity,
		strategy:    Inline,
		policy:      Never{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.resolveGranularity < 0 {
		return nil, &dynamo.ConfigError{Field: "resolve_block_size", Value: p.resolveGranularity, Reason: "must not be negative"}
	}
	if p.resolveGranularity == 0 {
		p.resolveGranularity = max(1, granularity/2)
	}
	if p.policy == nil {
		p.policy = Never{}
	}
	return p, nil
}

func (p *Partitioner) Granularity() int   { return p.granularity }
func (p *Partitioner) Strategy() Strategy { return p.strategy }

// Plan returns the ordered passes for numBodies. The result is freshly
// allocated and may be cached by the caller.
func (p *Partitioner) Plan(numBodies int) []Pass {
	if numBodies <= 0 {
		return nil
	}
	switch p.strategy {
	case Split:
		return []Pass{
			{Stage: StageIntegrate, Blocks: tile(numBodies, p.granularity, Never{})},
			{Stage: StageResolve, Blocks: tile(numBodies, p.resolveGranularity, p.policy)},
		}
	default:
		return []Pass{
			{Stage: StageIntegrate, Blocks: tile(numBodies, p.granularity, p.policy)},
		}
	}
}

// tile cuts [0, n) into blocks of g. The last block absorbs the remainder.
func tile(n, g int, policy CollidePolicy) []Block {
	count := max(1, n/g)
	blocks := make([]Block, count)
	for k := range blocks {
		begin := k * g
		split := begin + g
		if k == count-1 {
			split = n
		}
		blocks[k] = Block{Begin: begin, Split: split, Collide: policy.Collide(begin, split, n)}
	}
	return blocks
}

// Validate reports the first pass that does not tile [0, numBodies).
func Validate(passes []Pass, numBodies int) error {
	for pi, pass := range passes {
		next := 0
		for bi, b := range pass.Blocks {
			switch {
			case b.Begin != next:
				reason := "gap before block"
				if b.Begin < next {
					reason = "block overlaps its predecessor"
				}
				return &InconsistencyError{Pass: pi, Block: bi, NumBodies: numBodies, Reason: reason}
			case b.Split <= b.Begin:
				return &InconsistencyError{Pass: pi, Block: bi, NumBodies: numBodies, Reason: "empty or reversed block"}
			case b.Split > numBodies:
				return &InconsistencyError{Pass: pi, Block: bi, NumBodies: numBodies, Reason: "block overshoots the body range"}
			}
			next = b.Split
		}
		if next != numBodies {
			return &InconsistencyError{Pass: pi, Block: len(pass.Blocks), NumBodies: numBodies, Reason: "blocks stop short of the body range"}
		}
	}
	return nil
}

// Repair rebuilds every pass as an exact tiling of [0, numBodies). Block
// boundaries are clamped into range and kept where possible; a rebuilt block
// collides if any original block overlapping it did.
func Repair(passes []Pass, numBodies int) []Pass {
	out := make([]Pass, len(passes))
	for pi, pass := range passes {
		cuts := []int{0, numBodies}
		for _, b := range pass.Blocks {
			cuts = append(cuts, clampIndex(b.Begin, numBodies), clampIndex(b.Split, numBodies))
		}
		sort.Ints(cuts)

		blocks := make([]Block, 0, len(cuts))
		for i := 1; i < len(cuts); i++ {
			begin, split := cuts[i-1], cuts[i]
			if split == begin {
				continue
			}
			nb := Block{Begin: begin, Split: split}
			for _, b := range pass.Blocks {
				if b.Collide && b.Begin < split && b.Split > begin {
					nb.Collide = true
					break
				}
			}
			blocks = append(blocks, nb)
		}
		out[pi] = Pass{Stage: pass.Stage, Blocks: blocks}
	}
	return out
}

func clampIndex(i, n int) int {
	return min(max(i, 0), n)
}
