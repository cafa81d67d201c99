package shift

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/image-registration/pkg/types"
)

// libraryPad is the wrap margin around the source, wider than the kernel support
const libraryPad = 3

// Samples are mapped into [libraryLow, libraryHigh] of the 16-bit range so
// kernel overshoot is not clipped.
const (
	libraryLow  = 0.125 * 0xffff
	libraryHigh = 0.875 * 0xffff
)

// LibraryStrategy resamples through golang.org/x/image/draw using its
// smoothest kernel (Catmull-Rom). The integer part of the shift is applied as
// an exact circular roll and the fractional part by the kernel over a
// wrap-padded 16-bit copy of the image.
type LibraryStrategy struct {
	kernel *draw.Kernel
}

// NewLibrary creates the resampling strategy with the Catmull-Rom kernel
func NewLibrary() *LibraryStrategy {
	return &LibraryStrategy{kernel: draw.CatmullRom}
}

func (l *LibraryStrategy) Method() Method { return Library }

func (l *LibraryStrategy) Shift(img types.Image, v types.ShiftVector) types.Image {
	iy, fy := splitShift(v.DY, img.Rows)
	ix, fx := splitShift(v.DX, img.Cols)

	lo, hi := bounds(img)
	if hi == lo || (fy == 0 && fx == 0) {
		return roll(img, iy, ix)
	}

	scale := (libraryHigh - libraryLow) / (hi - lo)
	w, h := img.Cols+2*libraryPad, img.Rows+2*libraryPad
	src := image.NewGray16(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		r := wrap(y-libraryPad, img.Rows)
		for x := 0; x < w; x++ {
			c := wrap(x-libraryPad, img.Cols)
			g := uint16(math.Round(libraryLow + (img.At(r, c)-lo)*scale))
			i := src.PixOffset(x, y)
			src.Pix[i] = uint8(g >> 8)
			src.Pix[i+1] = uint8(g)
		}
	}

	// source point (x, y) lands on (x - pad + fx, y - pad + fy)
	dst := image.NewGray16(image.Rect(0, 0, img.Cols, img.Rows))
	s2d := f64.Aff3{
		1, 0, fx - libraryPad,
		0, 1, fy - libraryPad,
	}
	l.kernel.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)

	out := types.NewImage(img.Rows, img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			i := dst.PixOffset(c, r)
			g := float64(uint16(dst.Pix[i])<<8 | uint16(dst.Pix[i+1]))
			out.Set(r, c, lo+(g-libraryLow)/scale)
		}
	}
	return roll(out, iy, ix)
}

// splitShift reduces a shift modulo n and splits it into a whole part in
// [0, n) and a fraction in [0, 1).
func splitShift(s float64, n int) (int, float64) {
	s = math.Mod(s, float64(n))
	if s < 0 {
		s += float64(n)
	}
	whole := math.Floor(s)
	return int(whole) % n, s - whole
}

// roll circularly translates by whole pixels: out[r][c] = in[r-dy][c-dx]
func roll(img types.Image, dy, dx int) types.Image {
	out := types.NewImage(img.Rows, img.Cols)
	for r := 0; r < img.Rows; r++ {
		sr := wrap(r-dy, img.Rows)
		for c := 0; c < img.Cols; c++ {
			out.Pix[r*img.Cols+c] = img.Pix[sr*img.Cols+wrap(c-dx, img.Cols)]
		}
	}
	return out
}

func bounds(img types.Image) (float64, float64) {
	lo, hi := img.Pix[0], img.Pix[0]
	for _, v := range img.Pix[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
