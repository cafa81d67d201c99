// Package correlation measures translational offsets between images with
// phase correlation and weighted-centroid sub-pixel refinement.
package correlation

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/menta2k/image-registration/pkg/transform"
	"github.com/menta2k/image-registration/pkg/types"
)

// PhaseCorrelator estimates the offset of one image with respect to another
type PhaseCorrelator struct {
	provider transform.Provider
	config   Config
	now      func() time.Time
}

// Config holds the sub-pixel refinement parameters
type Config struct {
	// WindowHalfWidth is the half-width of the square refinement window around the coarse peak
	WindowHalfWidth int
	// Threshold is the fraction of the peak magnitude a cell must exceed to join the centroid
	Threshold float64
}

// DefaultConfig returns the 7x7 window, half-peak threshold refinement
func DefaultConfig() Config {
	return Config{
		WindowHalfWidth: 3,
		Threshold:       0.5,
	}
}

// New creates a PhaseCorrelator with the default transform provider and configuration
func New() *PhaseCorrelator {
	return NewWithConfig(transform.Default(), DefaultConfig())
}

// NewWithConfig creates a PhaseCorrelator with a custom provider and configuration
func NewWithConfig(provider transform.Provider, config Config) *PhaseCorrelator {
	if provider == nil {
		provider = transform.Default()
	}
	return &PhaseCorrelator{
		provider: provider,
		config:   config,
		now:      time.Now,
	}
}

// Provider returns the transform provider used for spectra
func (p *PhaseCorrelator) Provider() transform.Provider {
	return p.provider
}

// Spectrum transforms an image with the correlator's provider, so callers
// comparing many images against one reference can transform it once.
func (p *PhaseCorrelator) Spectrum(img types.Image) (types.Spectrum, error) {
	if err := img.Validate(); err != nil {
		return types.Spectrum{}, err
	}
	return p.provider.Forward(img), nil
}

// MeasureOffset returns the offset of img2 with respect to the reference img1.
// Shifting img2 by the negated offset aligns it onto img1.
func (p *PhaseCorrelator) MeasureOffset(img1, img2 types.Image, withLog bool) (types.OffsetResult, error) {
	if err := img1.Validate(); err != nil {
		return types.OffsetResult{}, err
	}
	if err := img2.Validate(); err != nil {
		return types.OffsetResult{}, err
	}
	if !img1.SameShape(img2) {
		return types.OffsetResult{}, fmt.Errorf("%w: %dx%d vs %dx%d",
			types.ErrShapeMismatch, img1.Rows, img1.Cols, img2.Rows, img2.Cols)
	}

	f0 := p.provider.Forward(img1)
	f1 := p.provider.Forward(img2)
	return p.MeasureOffsetFromSpectra(f0, f1, withLog)
}

// MeasureOffsetFromSpectra is MeasureOffset for already transformed images
func (p *PhaseCorrelator) MeasureOffsetFromSpectra(f0, f1 types.Spectrum, withLog bool) (types.OffsetResult, error) {
	if !f0.SameShape(f1) {
		return types.OffsetResult{}, fmt.Errorf("%w: %dx%d vs %dx%d",
			types.ErrShapeMismatch, f0.Rows, f0.Cols, f1.Rows, f1.Cols)
	}
	if f0.Rows < 1 || f0.Cols < 1 || len(f0.Data) != f0.Rows*f0.Cols || len(f1.Data) != len(f0.Data) {
		return types.OffsetResult{}, fmt.Errorf("%w: spectrum buffer does not match shape %dx%d",
			types.ErrInvalidImage, f0.Rows, f0.Cols)
	}

	start := p.now()
	surface := p.correlationSurface(f0, f1)

	a0, a1, peak := argmax(surface)
	halfRows, halfCols := f0.Rows/2, f0.Cols/2

	var x0, x1 float64
	if isFlat(surface, peak) {
		// no distinct peak, report no motion
		a0, a1 = halfRows, halfCols
		x0, x1 = float64(a0), float64(a1)
	} else {
		x0, x1 = p.centroid(surface, a0, a1, peak)
	}
	coarse := [2]int{halfRows - a0, halfCols - a1}
	offset := types.ShiftVector{
		DY: float64(halfRows) - x0,
		DX: float64(halfCols) - x1,
	}

	result := types.OffsetResult{Shift: offset}
	if withLog {
		elapsed := p.now().Sub(start)
		result.Logs = []string{
			fmt.Sprintf("coarse result: %d %d", coarse[0], coarse[1]),
			fmt.Sprintf("refined result: %.3f %.3f", offset.DY, offset.DX),
			fmt.Sprintf("total execution time: %.3fs", elapsed.Seconds()),
		}
	}
	return result, nil
}

// correlationSurface returns |centered(IFFT(F0 conj(F1) / |F0||F1|))|.
// Bins with a zero or non-finite magnitude product contribute nothing.
func (p *PhaseCorrelator) correlationSurface(f0, f1 types.Spectrum) types.Image {
	cross := types.NewSpectrum(f0.Rows, f0.Cols)
	for i := range cross.Data {
		a, b := f0.Data[i], f1.Data[i]
		norm := cmplx.Abs(a) * cmplx.Abs(b)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			continue
		}
		cross.Data[i] = a * cmplx.Conj(b) / complex(norm, 0)
	}

	lags := p.provider.Inverse(cross)
	surface := types.NewImage(f0.Rows, f0.Cols)
	for i, v := range lags.Data {
		surface.Pix[i] = cmplx.Abs(v)
	}
	return transform.Shift(surface)
}

// argmax returns the first row-major index of the maximum value
func argmax(img types.Image) (int, int, float64) {
	best := 0
	for i, v := range img.Pix {
		if v > img.Pix[best] {
			best = i
		}
	}
	return best / img.Cols, best % img.Cols, img.Pix[best]
}

// flatTolerance is the relative peak prominence below which a correlation
// surface carries no usable peak
const flatTolerance = 1e-9

// isFlat reports whether the surface is uniform within flatTolerance of its
// peak, as happens when at most the DC bin of the cross-power spectrum is
// defined (constant or empty frames)
func isFlat(surface types.Image, peak float64) bool {
	lo := peak
	for _, v := range surface.Pix {
		lo = math.Min(lo, v)
	}
	return peak-lo <= flatTolerance*peak
}

// centroid computes the magnitude-weighted position of the cells above the
// threshold inside the refinement window, clipped to the surface.
func (p *PhaseCorrelator) centroid(surface types.Image, a0, a1 int, peak float64) (float64, float64) {
	w := p.config.WindowHalfWidth
	limit := p.config.Threshold * peak

	r0, r1 := max(a0-w, 0), min(a0+w, surface.Rows-1)
	c0, c1 := max(a1-w, 0), min(a1+w, surface.Cols-1)

	var x0, x1, total float64
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			v := surface.At(r, c)
			if v > limit {
				x0 += float64(r) * v
				x1 += float64(c) * v
				total += v
			}
		}
	}
	if total == 0 {
		// flat surface, nothing above threshold
		return float64(a0), float64(a1)
	}
	return x0 / total, x1 / total
}
