package measurement

import (
	"context"
	"fmt"

	"github.com/hupe1980/rewardsearch/particle"
)

// Operator is a differentiable forward measurement model.
type Operator interface {
	// Measure returns A(x) for every particle.
	Measure(ctx context.Context, x *particle.Batch) (*particle.Batch, error)

	// Gradient returns d||y - A(x)||^2 / dx for every particle. y holds one
	// measurement per particle.
	Gradient(ctx context.Context, x, y *particle.Batch) (*particle.Batch, error)

	// Sigma returns the measurement noise level.
	Sigma() float64
}

// Mask is an inpainting operator: A(x) = m * x with a per-pixel mask shared
// by all channels.
type Mask struct {
	shape particle.Shape
	mask  []float32
	sigma float64
}

var _ Operator = (*Mask)(nil)

// NewMask creates a mask operator. mask has H*W entries, 1 for observed
// pixels and 0 for missing ones.
func NewMask(shape particle.Shape, mask []float32, sigma float64) (*Mask, error) {
	if len(mask) != shape.H*shape.W {
		return nil, fmt.Errorf("%w: mask has %d entries, want %d", particle.ErrShapeMismatch, len(mask), shape.H*shape.W)
	}
	return &Mask{shape: shape, mask: mask, sigma: sigma}, nil
}

// NewBoxMask masks out the h x w box at (y0, x0).
func NewBoxMask(shape particle.Shape, y0, x0, h, w int, sigma float64) *Mask {
	mask := make([]float32, shape.H*shape.W)
	for y := 0; y < shape.H; y++ {
		for x := 0; x < shape.W; x++ {
			if y >= y0 && y < y0+h && x >= x0 && x < x0+w {
				continue
			}
			mask[y*shape.W+x] = 1
		}
	}
	return &Mask{shape: shape, mask: mask, sigma: sigma}
}

func (m *Mask) Sigma() float64 { return m.sigma }

func (m *Mask) check(x *particle.Batch) error {
	if err := x.Validate(); err != nil {
		return err
	}
	if x.Shape != m.shape {
		return fmt.Errorf("%w: operator expects %s, have %s", particle.ErrShapeMismatch, m.shape, x.Shape)
	}
	return nil
}

func (m *Mask) Measure(_ context.Context, x *particle.Batch) (*particle.Batch, error) {
	if err := m.check(x); err != nil {
		return nil, err
	}
	out := x.Clone()
	plane := len(m.mask)
	for i := range out.Data {
		out.Data[i] *= m.mask[i%plane]
	}
	return out, nil
}

func (m *Mask) Gradient(ctx context.Context, x, y *particle.Batch) (*particle.Batch, error) {
	ax, err := m.Measure(ctx, x)
	if err != nil {
		return nil, err
	}
	if y.N != x.N || y.Shape != x.Shape {
		return nil, fmt.Errorf("%w: measurement %d x %s, particles %d x %s", particle.ErrShapeMismatch, y.N, y.Shape, x.N, x.Shape)
	}
	// 2 M^T (Mx - y), M diagonal.
	plane := len(m.mask)
	for i := range ax.Data {
		ax.Data[i] = 2 * m.mask[i%plane] * (ax.Data[i] - y.Data[i])
	}
	return ax, nil
}

// Downsample is a super-resolution operator: A(x) averages non-overlapping
// factor x factor pixel blocks.
type Downsample struct {
	factor int
	sigma  float64
}

var _ Operator = (*Downsample)(nil)

// NewDownsample creates a downsampling operator.
func NewDownsample(factor int, sigma float64) (*Downsample, error) {
	if factor < 1 {
		return nil, fmt.Errorf("invalid downsample factor %d", factor)
	}
	return &Downsample{factor: factor, sigma: sigma}, nil
}

func (d *Downsample) Sigma() float64 { return d.sigma }

// OutputShape returns the measurement shape for inputs of shape s.
func (d *Downsample) OutputShape(s particle.Shape) particle.Shape {
	return particle.Shape{C: s.C, H: s.H / d.factor, W: s.W / d.factor}
}

func (d *Downsample) check(x *particle.Batch) error {
	if err := x.Validate(); err != nil {
		return err
	}
	if x.Shape.H%d.factor != 0 || x.Shape.W%d.factor != 0 {
		return fmt.Errorf("%w: %s not divisible by factor %d", particle.ErrShapeMismatch, x.Shape, d.factor)
	}
	return nil
}

func (d *Downsample) Measure(_ context.Context, x *particle.Batch) (*particle.Batch, error) {
	if err := d.check(x); err != nil {
		return nil, err
	}
	ms := d.OutputShape(x.Shape)
	out := particle.New(x.N, ms)
	f := d.factor
	inv := 1 / float32(f*f)
	for n := 0; n < x.N; n++ {
		src, dst := x.At(n), out.At(n)
		for c := 0; c < ms.C; c++ {
			for oy := 0; oy < ms.H; oy++ {
				for ox := 0; ox < ms.W; ox++ {
					var sum float32
					for dy := 0; dy < f; dy++ {
						row := (c*x.Shape.H+oy*f+dy)*x.Shape.W + ox*f
						for dx := 0; dx < f; dx++ {
							sum += src[row+dx]
						}
					}
					dst[(c*ms.H+oy)*ms.W+ox] = sum * inv
				}
			}
		}
	}
	return out, nil
}

func (d *Downsample) Gradient(ctx context.Context, x, y *particle.Batch) (*particle.Batch, error) {
	ax, err := d.Measure(ctx, x)
	if err != nil {
		return nil, err
	}
	if y.N != ax.N || y.Shape != ax.Shape {
		return nil, fmt.Errorf("%w: measurement %d x %s, want %d x %s", particle.ErrShapeMismatch, y.N, y.Shape, ax.N, ax.Shape)
	}

	// 2 A^T (Ax - y); A^T spreads each residual evenly over its block.
	grads := x.ZerosLike()
	ms := ax.Shape
	f := d.factor
	inv := 1 / float32(f*f)
	for n := 0; n < x.N; n++ {
		res, obs, dst := ax.At(n), y.At(n), grads.At(n)
		for c := 0; c < ms.C; c++ {
			for oy := 0; oy < ms.H; oy++ {
				for ox := 0; ox < ms.W; ox++ {
					o := (c*ms.H+oy)*ms.W + ox
					g := 2 * (res[o] - obs[o]) * inv
					for dy := 0; dy < f; dy++ {
						row := (c*x.Shape.H+oy*f+dy)*x.Shape.W + ox*f
						for dx := 0; dx < f; dx++ {
							dst[row+dx] = g
						}
					}
				}
			}
		}
	}
	return grads, nil
}
