package shift

import (
	"math"

	"github.com/menta2k/image-registration/pkg/types"
)

// Point is a fractional (row, column) sampling coordinate
type Point struct {
	Y float64
	X float64
}

// Interpolator evaluates an image at arbitrary non-integer coordinates.
// Implementations used for shifting must treat the grid as periodic.
type Interpolator interface {
	Interpolate(img types.Image, points []Point) []float64
}

// BilinearStrategy samples the source at every output pixel's coordinate
// moved back by the shift vector.
type BilinearStrategy struct {
	interp Interpolator
}

// NewBilinear creates the interpolation strategy backed by interp
func NewBilinear(interp Interpolator) *BilinearStrategy {
	if interp == nil {
		interp = WrapBilinear{}
	}
	return &BilinearStrategy{interp: interp}
}

func (b *BilinearStrategy) Method() Method { return Bilinear }

func (b *BilinearStrategy) Shift(img types.Image, v types.ShiftVector) types.Image {
	points := make([]Point, 0, img.Rows*img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			points = append(points, Point{Y: float64(r) - v.DY, X: float64(c) - v.DX})
		}
	}

	values := b.interp.Interpolate(img, points)
	out := types.NewImage(img.Rows, img.Cols)
	copy(out.Pix, values)
	return out
}

// WrapBilinear is a bilinear interpolator with periodic boundaries
type WrapBilinear struct{}

func (WrapBilinear) Interpolate(img types.Image, points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		y0 := math.Floor(p.Y)
		x0 := math.Floor(p.X)
		fy, fx := p.Y-y0, p.X-x0

		r0 := wrap(int(y0), img.Rows)
		r1 := wrap(r0+1, img.Rows)
		c0 := wrap(int(x0), img.Cols)
		c1 := wrap(c0+1, img.Cols)

		top := lerp(img.At(r0, c0), img.At(r0, c1), fx)
		bottom := lerp(img.At(r1, c0), img.At(r1, c1), fx)
		out[i] = lerp(top, bottom, fy)
	}
	return out
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
