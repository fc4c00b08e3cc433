// Package particle holds the particle population exchanged between a sampling
// loop, reward providers and the search engine.
//
// A Batch stores N particles contiguously in NCHW order. Pixel values are
// expected in [-1, 1]. A particle's identity is its index; the population only
// changes by reassignment through Gather.
package particle

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrShapeMismatch is returned when data length and shape disagree.
	ErrShapeMismatch = errors.New("particle: shape mismatch")

	// ErrIndexOutOfRange is returned when an assignment references a particle
	// outside the population.
	ErrIndexOutOfRange = errors.New("particle: index out of range")
)

// Shape is the per-particle tensor shape (channels, height, width).
type Shape struct {
	C, H, W int
}

// Size returns the number of elements of one particle.
func (s Shape) Size() int { return s.C * s.H * s.W }

func (s Shape) String() string { return fmt.Sprintf("%dx%dx%d", s.C, s.H, s.W) }

// Batch is a population of N particles sharing one shape.
type Batch struct {
	Shape Shape
	N     int
	Data  []float32
}

// New allocates a zeroed batch of n particles.
func New(n int, shape Shape) *Batch {
	return &Batch{
		Shape: shape,
		N:     n,
		Data:  make([]float32, n*shape.Size()),
	}
}

// FromSlices builds a batch by copying each particle slice.
func FromSlices(shape Shape, particles [][]float32) (*Batch, error) {
	b := New(len(particles), shape)
	size := shape.Size()
	for i, p := range particles {
		if len(p) != size {
			return nil, fmt.Errorf("%w: particle %d has %d elements, want %d", ErrShapeMismatch, i, len(p), size)
		}
		copy(b.Data[i*size:], p)
	}
	return b, nil
}

// Len returns the number of particles.
func (b *Batch) Len() int { return b.N }

// At returns a view of particle i. Writes go through to the batch.
func (b *Batch) At(i int) []float32 {
	size := b.Shape.Size()
	return b.Data[i*size : (i+1)*size : (i+1)*size]
}

// Validate checks the data length against N and Shape.
func (b *Batch) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil batch", ErrShapeMismatch)
	}
	if b.N < 0 || b.Shape.C <= 0 || b.Shape.H <= 0 || b.Shape.W <= 0 {
		return fmt.Errorf("%w: invalid shape %d x %s", ErrShapeMismatch, b.N, b.Shape)
	}
	if want := b.N * b.Shape.Size(); len(b.Data) != want {
		return fmt.Errorf("%w: have %d elements, want %d (%d x %s)", ErrShapeMismatch, len(b.Data), want, b.N, b.Shape)
	}
	return nil
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	return &Batch{Shape: b.Shape, N: b.N, Data: slices.Clone(b.Data)}
}

// ZerosLike returns a zeroed batch with the same N and shape.
func (b *Batch) ZerosLike() *Batch {
	return New(b.N, b.Shape)
}

// Gather builds the next population: out[i] = b[indices[i]].
// The result owns its data; b is left untouched.
func (b *Batch) Gather(indices []int) (*Batch, error) {
	out := New(len(indices), b.Shape)
	size := b.Shape.Size()
	for i, src := range indices {
		if src < 0 || src >= b.N {
			return nil, fmt.Errorf("%w: slot %d references %d, population has %d", ErrIndexOutOfRange, i, src, b.N)
		}
		copy(out.Data[i*size:(i+1)*size], b.Data[src*size:(src+1)*size])
	}
	return out, nil
}

// Identity returns the assignment [0, 1, ..., n-1].
func Identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// IsIdentity reports whether indices is the identity assignment.
func IsIdentity(indices []int) bool {
	for i, v := range indices {
		if v != i {
			return false
		}
	}
	return true
}
