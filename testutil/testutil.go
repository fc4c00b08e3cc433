package testutil

import (
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/rewardsearch/particle"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed uint64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{
		rand: newRand(seed),
		seed: seed,
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda3e39cb94b95bdb))
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = newRand(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float32 in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillUniformRange fills dst with random values in range [minVal, maxVal).
func (r *RNG) FillUniformRange(dst []float32, minVal, maxVal float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := maxVal - minVal
	for i := range dst {
		dst[i] = minVal + r.rand.Float32()*span
	}
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64())
	}
}

// Batch returns n particles of shape with pixel values in [-1, 1).
func (r *RNG) Batch(n int, shape particle.Shape) *particle.Batch {
	b := particle.New(n, shape)
	r.FillUniformRange(b.Data, -1, 1)
	return b
}

// Perturb adds Gaussian noise with standard deviation sigma to every
// element of b and clamps the result to [-1, 1].
func (r *RNG) Perturb(b *particle.Batch, sigma float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range b.Data {
		b.Data[i] = min(max(v+float32(r.rand.NormFloat64())*sigma, -1), 1)
	}
}

// Rewards returns n standard normal rewards.
func (r *RNG) Rewards(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.rand.NormFloat64()
	}
	return out
}

// Permutation returns a random permutation of [0, n).
func (r *RNG) Permutation(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Perm(n)
}
