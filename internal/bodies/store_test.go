package bodies

import (
	"errors"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/san-kum/starfield/internal/dynamo"
)

func TestNewRejectsEmpty(t *testing.T) {
	for _, n := range []int{0, -3} {
		_, err := New(n)
		if !errors.Is(err, dynamo.ErrConfiguration) {
			t.Errorf("New(%d): expected configuration error, got %v", n, err)
		}
	}
}

func TestSwapTwiceRestoresCurrent(t *testing.T) {
	s, err := New(4)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	s.Seed(func(b dynamo.Buffer) {
		for i := range b.Positions {
			b.Positions[i] = mgl32.Vec4{float32(i), 0, 0, 1}
		}
	})

	before := s.Current()
	s.Swap()
	if s.Current().Slot == before.Slot {
		t.Fatal("swap did not change the current arena")
	}
	s.Swap()

	after := s.Current()
	if after.Slot != before.Slot {
		t.Errorf("expected slot %d after two swaps, got %d", before.Slot, after.Slot)
	}
	if &after.Positions[0] != &before.Positions[0] {
		t.Error("expected the same backing array after two swaps")
	}
	for i, p := range after.Positions {
		if p.X() != float32(i) {
			t.Errorf("body %d: value changed across swaps: %v", i, p)
		}
	}
	if s.Swaps() != 2 {
		t.Errorf("expected 2 swaps, got %d", s.Swaps())
	}
}

func TestCurrentAndNextAreDistinct(t *testing.T) {
	s, _ := New(8)
	cur, next := s.Current(), s.Next()
	if cur.Slot == next.Slot {
		t.Fatal("current and next share a slot")
	}
	next.Positions[3] = mgl32.Vec4{9, 9, 9, 9}
	if cur.Positions[3] == next.Positions[3] {
		t.Error("writing next leaked into current")
	}
}

func TestSeedMirrorsIntoBothArenas(t *testing.T) {
	s, _ := New(3)
	s.Seed(func(b dynamo.Buffer) {
		b.Velocities[1] = mgl32.Vec4{1, 2, 3, 0}
	})
	if s.Current().Velocities[1] != s.Next().Velocities[1] {
		t.Error("seed was not mirrored into the next arena")
	}
}

func TestSnapshotSubset(t *testing.T) {
	s, _ := New(10)
	s.Seed(func(b dynamo.Buffer) {
		for i := range b.Positions {
			b.Positions[i] = mgl32.Vec4{float32(i), 0, 0, 0}
		}
	})

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"subset", 4, 4},
		{"all", 0, 10},
		{"too many", 25, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := s.Snapshot(dynamo.Buffer{}, tt.k)
			if snap.Len() != tt.want {
				t.Fatalf("expected %d bodies, got %d", tt.want, snap.Len())
			}
			snap.Positions[0] = mgl32.Vec4{-1, 0, 0, 0}
			if s.Current().Positions[0].X() == -1 {
				t.Error("snapshot aliases the store")
			}
		})
	}
}

func TestReadBlocksSwap(t *testing.T) {
	s, _ := New(2)
	entered := make(chan struct{})
	release := make(chan struct{})
	var seen int

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Read(func(b dynamo.Buffer) {
			close(entered)
			<-release
			seen = b.Slot
		})
	}()

	<-entered
	swapped := make(chan struct{})
	go func() {
		s.Swap()
		close(swapped)
	}()

	select {
	case <-swapped:
		t.Fatal("swap ran while a reader held the current arena")
	default:
	}

	close(release)
	wg.Wait()
	<-swapped

	if seen != 0 {
		t.Errorf("reader saw slot %d, expected 0", seen)
	}
	if s.Current().Slot != 1 {
		t.Errorf("expected slot 1 after swap, got %d", s.Current().Slot)
	}
}

func TestPoolReuse(t *testing.T) {
	s, _ := New(6)
	p := NewPool(3)

	b := p.SnapshotFrom(s)
	if b.Len() != 3 {
		t.Fatalf("expected pooled snapshot of 3, got %d", b.Len())
	}
	b.Positions[0] = mgl32.Vec4{1, 1, 1, 1}
	p.Put(b)

	again := p.Get()
	if again.Positions[0] != (mgl32.Vec4{}) {
		t.Error("pool did not clear the buffer")
	}

	p.Put(dynamo.NewBuffer(0, 5))
}
