package shift

import (
	"math"
	"math/cmplx"

	"github.com/menta2k/image-registration/pkg/transform"
	"github.com/menta2k/image-registration/pkg/types"
)

// FFTStrategy shifts by multiplying the spectrum with a linear phase ramp.
// The translation is exactly circular; the result is the magnitude of the
// inverse transform.
type FFTStrategy struct {
	provider transform.Provider
}

// NewFFT creates the phase-ramp strategy
func NewFFT(provider transform.Provider) *FFTStrategy {
	if provider == nil {
		provider = transform.Default()
	}
	return &FFTStrategy{provider: provider}
}

func (f *FFTStrategy) Method() Method { return FFT }

func (f *FFTStrategy) Shift(img types.Image, v types.ShiftVector) types.Image {
	spec := f.provider.Forward(img)

	e0 := phaseRamp(img.Rows, v.DY)
	e1 := phaseRamp(img.Cols, v.DX)
	for r := 0; r < img.Rows; r++ {
		row := spec.Data[r*img.Cols : (r+1)*img.Cols]
		for c := range row {
			row[c] *= e0[r] * e1[c]
		}
	}

	back := f.provider.Inverse(spec)
	out := types.NewImage(img.Rows, img.Cols)
	for i, z := range back.Data {
		out.Pix[i] = cmplx.Abs(z)
	}
	return out
}

// phaseRamp returns exp(-2*pi*i*shift*f/n) for every frequency bin of an axis
func phaseRamp(n int, shift float64) []complex128 {
	freqs := transform.Frequencies(n)
	ramp := make([]complex128, n)
	for k, f := range freqs {
		ramp[k] = cmplx.Exp(complex(0, -2*math.Pi*shift*f/float64(n)))
	}
	return ramp
}
