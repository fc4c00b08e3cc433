package reference

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/hupe1980/rewardsearch/particle"
	"golang.org/x/image/draw"
)

// DecodeImage decodes a PNG or JPEG image, resizes its shorter side to res,
// center-crops it to res x res and returns it as one RGB particle with values
// in [-1, 1]. Grayscale images are expanded to three equal channels.
func DecodeImage(data []byte, res int) (*particle.Batch, error) {
	if res <= 0 {
		return nil, fmt.Errorf("invalid resolution %d", res)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return FromImage(src, res), nil
}

// FromImage converts img like DecodeImage does.
func FromImage(img image.Image, res int) *particle.Batch {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// Resize shorter side to res, preserving aspect ratio.
	var rw, rh int
	if w <= h {
		rw, rh = res, max(res, h*res/max(w, 1))
	} else {
		rw, rh = max(res, w*res/max(h, 1)), res
	}

	resized := image.NewRGBA(image.Rect(0, 0, rw, rh))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, b, draw.Src, nil)

	x0 := (rw - res) / 2
	y0 := (rh - res) / 2

	out := particle.New(1, particle.Shape{C: 3, H: res, W: res})
	plane := res * res
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			off := resized.PixOffset(x0+x, y0+y)
			pos := y*res + x
			out.Data[pos] = toUnit(resized.Pix[off])
			out.Data[plane+pos] = toUnit(resized.Pix[off+1])
			out.Data[2*plane+pos] = toUnit(resized.Pix[off+2])
		}
	}
	return out
}

// ToImage converts particle i of b (3 channels, [-1, 1]) to an RGBA image.
func ToImage(b *particle.Batch, i int) (*image.RGBA, error) {
	if b.Shape.C != 3 && b.Shape.C != 1 {
		return nil, fmt.Errorf("%w: want 1 or 3 channels, have %d", particle.ErrShapeMismatch, b.Shape.C)
	}
	if i < 0 || i >= b.N {
		return nil, fmt.Errorf("%w: %d", particle.ErrIndexOutOfRange, i)
	}

	h, w := b.Shape.H, b.Shape.W
	plane := h * w
	data := b.At(i)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pos := y*w + x
			off := img.PixOffset(x, y)
			r := data[pos]
			g, bl := r, r
			if b.Shape.C == 3 {
				g, bl = data[plane+pos], data[2*plane+pos]
			}
			img.Pix[off] = toByte(r)
			img.Pix[off+1] = toByte(g)
			img.Pix[off+2] = toByte(bl)
			img.Pix[off+3] = 0xff
		}
	}
	return img, nil
}

func toUnit(v uint8) float32 {
	return float32(v)/255*2 - 1
}

func toByte(v float32) uint8 {
	f := (v + 1) / 2 * 255
	switch {
	case f <= 0 || f != f:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f + 0.5)
}
