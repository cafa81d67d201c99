// Package transform provides the 2D Fourier transforms used by the
// correlation and shift packages, and the center-zero reordering of
// correlation surfaces.
package transform

import (
	"fmt"
	"strings"

	"github.com/menta2k/image-registration/pkg/types"
)

// Provider computes forward and inverse 2D complex transforms.
// Inverse is normalized so that Inverse(Forward(x)) == x.
type Provider interface {
	Name() string
	Forward(img types.Image) types.Spectrum
	Inverse(s types.Spectrum) types.Spectrum
}

// Provider names accepted by ByName
const (
	Gonum = "gonum"
	DSP   = "dsp"
)

// Default returns the gonum-backed provider
func Default() Provider {
	return NewGonum()
}

// ByName returns the provider registered under name (case-insensitive).
// An empty name selects the default provider.
func ByName(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Gonum:
		return NewGonum(), nil
	case DSP, "go-dsp":
		return NewDSP(), nil
	default:
		return nil, fmt.Errorf("unknown transform provider: %s (available: %v)", name, Names())
	}
}

// Names lists the available providers
func Names() []string {
	return []string{Gonum, DSP}
}

// Shift moves the zero-lag element of a real grid, such as a correlation
// magnitude surface, to its center at (rows/2, cols/2)
func Shift(img types.Image) types.Image {
	out := types.NewImage(img.Rows, img.Cols)
	sr, sc := img.Rows/2, img.Cols/2
	for r := 0; r < img.Rows; r++ {
		dr := (r + sr) % img.Rows
		for c := 0; c < img.Cols; c++ {
			out.Pix[dr*img.Cols+(c+sc)%img.Cols] = img.Pix[r*img.Cols+c]
		}
	}
	return out
}

// Frequencies returns the signed integer frequency of each transform bin of an
// axis of length n, in transform order: 0, 1, ..., then the negative half.
// For even n the values span [-n/2, n/2).
func Frequencies(n int) []float64 {
	freqs := make([]float64, n)
	for k := 0; k < n; k++ {
		if k < n-n/2 {
			freqs[k] = float64(k)
		} else {
			freqs[k] = float64(k - n)
		}
	}
	return freqs
}

// toComplex widens a real image into a complex grid
func toComplex(img types.Image) types.Spectrum {
	s := types.NewSpectrum(img.Rows, img.Cols)
	for i, v := range img.Pix {
		s.Data[i] = complex(v, 0)
	}
	return s
}
