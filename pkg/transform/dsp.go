package transform

import (
	"github.com/mjibson/go-dsp/fft"

	"github.com/menta2k/image-registration/pkg/types"
)

// DSPProvider wraps mjibson/go-dsp, whose IFFT2 is already normalized.
type DSPProvider struct{}

// NewDSP creates a go-dsp backed provider
func NewDSP() *DSPProvider {
	return &DSPProvider{}
}

func (p *DSPProvider) Name() string { return DSP }

func (p *DSPProvider) Forward(img types.Image) types.Spectrum {
	grid := make([][]float64, img.Rows)
	for r := range grid {
		grid[r] = img.Pix[r*img.Cols : (r+1)*img.Cols]
	}
	return fromGrid(fft.FFT2Real(grid), img.Rows, img.Cols)
}

func (p *DSPProvider) Inverse(s types.Spectrum) types.Spectrum {
	return fromGrid(fft.IFFT2(toGrid(s)), s.Rows, s.Cols)
}

func toGrid(s types.Spectrum) [][]complex128 {
	grid := make([][]complex128, s.Rows)
	for r := range grid {
		grid[r] = make([]complex128, s.Cols)
		copy(grid[r], s.Data[r*s.Cols:(r+1)*s.Cols])
	}
	return grid
}

func fromGrid(grid [][]complex128, rows, cols int) types.Spectrum {
	s := types.NewSpectrum(rows, cols)
	for r := 0; r < rows; r++ {
		copy(s.Data[r*cols:(r+1)*cols], grid[r])
	}
	return s
}
