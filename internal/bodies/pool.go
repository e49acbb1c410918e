package bodies

import (
	"sync"

	"github.com/san-kum/starfield/internal/dynamo"
)

// Pool recycles snapshot buffers of a fixed body count.
type Pool struct {
	pool sync.Pool
	size int
}

func NewPool(size int) *Pool {
	return &Pool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				b := dynamo.NewBuffer(-1, size)
				return &b
			},
		},
	}
}

func (p *Pool) Get() dynamo.Buffer {
	return *p.pool.Get().(*dynamo.Buffer)
}

// Put returns b to the pool. Buffers of another size are dropped.
func (p *Pool) Put(b dynamo.Buffer) {
	if b.Len() != p.size {
		return
	}
	clear(b.Positions)
	clear(b.Velocities)
	p.pool.Put(&b)
}

// SnapshotFrom copies the first Size bodies of s into a pooled buffer.
func (p *Pool) SnapshotFrom(s *Store) dynamo.Buffer {
	return s.Snapshot(p.Get(), p.size)
}

func (p *Pool) Size() int { return p.size }
