// Package imageregistration measures and corrects translational misalignment
// between images.
//
// Offsets are measured by phase correlation with sub-pixel refinement. Images
// are moved by sub-pixel amounts with periodic (wrap-around) boundaries using
// one of several shift strategies, and a crop window is computed that excludes
// the wrapped-in borders across a whole stack.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		imageregistration "github.com/menta2k/image-registration"
//		"github.com/menta2k/image-registration/pkg/shift"
//	)
//
//	func main() {
//		reg := imageregistration.New()
//
//		ref, err := reg.LoadFrame("frame0.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		moving, err := reg.LoadFrame("frame1.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		offset, err := reg.MeasureOffset(ref, moving, false)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println("offset:", offset.Shift)
//
//		aligned, err := reg.ShiftImage(moving, offset.Shift.Negate(), shift.Auto)
//		if err != nil {
//			log.Fatal(err)
//		}
//		_ = aligned
//	}
//
// The package consists of these components:
//
//  1. Transform (pkg/transform): 2-D FFT providers backed by gonum or go-dsp
//  2. Correlation (pkg/correlation): phase correlation offset measurement
//  3. Shift (pkg/shift): FFT, bilinear and library resampling strategies
//  4. Cropper (pkg/cropper): crop window computation for shifted stacks
//  5. Stack (pkg/stack): concurrent alignment of a frame sequence
//  6. Processing (pkg/processing): frame I/O and grayscale conversion
//  7. Vision (pkg/vision): sharpness scoring for reference selection
package imageregistration

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/menta2k/image-registration/internal/utils"
	"github.com/menta2k/image-registration/pkg/correlation"
	"github.com/menta2k/image-registration/pkg/cropper"
	"github.com/menta2k/image-registration/pkg/log"
	"github.com/menta2k/image-registration/pkg/processing"
	"github.com/menta2k/image-registration/pkg/shift"
	"github.com/menta2k/image-registration/pkg/stack"
	"github.com/menta2k/image-registration/pkg/transform"
	"github.com/menta2k/image-registration/pkg/types"
	"github.com/menta2k/image-registration/pkg/vision"
)

// Version of the image registration library
const Version = "1.0.0"

// Config selects the components a Registrar is built from
type Config struct {
	// Provider is the FFT backend; nil selects the gonum provider
	Provider transform.Provider
	// Capabilities are the enabled shift strategies; FFT is always enabled
	Capabilities []shift.Method
	Correlation  correlation.Config
	Stack        stack.Config
	// Logger receives stack alignment progress; nil discards it
	Logger log.Logger
}

// DefaultConfig enables every strategy on the default provider
func DefaultConfig() Config {
	return Config{
		Provider:     transform.Default(),
		Capabilities: shift.Methods(),
		Correlation:  correlation.DefaultConfig(),
		Stack:        stack.DefaultConfig(),
		Logger:       log.NewNoopLogger(),
	}
}

// Registrar provides a high-level interface for measuring, shifting and
// cropping images
type Registrar struct {
	correlator *correlation.PhaseCorrelator
	shifter    *shift.Shifter
	aligner    *stack.Aligner
	processor  *processing.Processor
	scorer     *vision.SharpnessScorer
}

// New creates a new Registrar with default configuration
func New() *Registrar {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Registrar with custom configuration
func NewWithConfig(config Config) *Registrar {
	provider := config.Provider
	if provider == nil {
		provider = transform.Default()
	}
	if config.Correlation == (correlation.Config{}) {
		config.Correlation = correlation.DefaultConfig()
	}
	correlator := correlation.NewWithConfig(provider, config.Correlation)
	shifter := shift.NewWithStrategies(shift.Capabilities(provider, config.Capabilities...)...)

	return &Registrar{
		correlator: correlator,
		shifter:    shifter,
		aligner:    stack.NewWithConfig(correlator, shifter, config.Logger, config.Stack),
		processor:  processing.NewProcessor(),
		scorer:     vision.New(),
	}
}

// MeasureOffset returns the translation of img2 relative to img1. Shifting
// img2 by the negated offset aligns it onto img1.
func (r *Registrar) MeasureOffset(img1, img2 types.Image, withLog bool) (types.OffsetResult, error) {
	return r.correlator.MeasureOffset(img1, img2, withLog)
}

// MeasureOffsetFromSpectra is MeasureOffset on precomputed spectra
func (r *Registrar) MeasureOffsetFromSpectra(f0, f1 types.Spectrum, withLog bool) (types.OffsetResult, error) {
	return r.correlator.MeasureOffsetFromSpectra(f0, f1, withLog)
}

// Spectrum computes the forward transform used by MeasureOffsetFromSpectra
func (r *Registrar) Spectrum(img types.Image) (types.Spectrum, error) {
	return r.correlator.Spectrum(img)
}

// ShiftImage translates img by v with periodic boundaries
func (r *Registrar) ShiftImage(img types.Image, v types.ShiftVector, method shift.Method) (types.Image, error) {
	return r.shifter.Shift(img, v, method)
}

// AvailableMethods returns the enabled shift strategies in priority order
func (r *Registrar) AvailableMethods() []shift.Method {
	return r.shifter.Available()
}

// GetCropWindow returns the window valid for every image of a stack shifted by
// (shiftsAxis0[i], shiftsAxis1[i])
func (r *Registrar) GetCropWindow(rows, cols int, shiftsAxis0, shiftsAxis1 []float64) (types.CropWindow, error) {
	return cropper.GetCropWindow(rows, cols, shiftsAxis0, shiftsAxis1)
}

// AlignStack aligns every frame onto the configured reference frame
func (r *Registrar) AlignStack(ctx context.Context, frames []stack.Frame) (stack.Result, error) {
	return r.aligner.Align(ctx, frames)
}

// SelectReference returns the index of the sharpest frame, suitable as the
// reference of a stack alignment
func (r *Registrar) SelectReference(frames []stack.Frame) (int, error) {
	imgs := make([]types.Image, len(frames))
	for i, f := range frames {
		imgs[i] = f.Image
	}
	return r.scorer.SelectReference(imgs)
}

// LoadFrame loads a file or URL as a grayscale frame
func (r *Registrar) LoadFrame(source string) (types.Image, error) {
	return r.processor.LoadFrame(source)
}

// SaveFrame writes a frame with samples in [0, 1], format chosen by extension
func (r *Registrar) SaveFrame(img types.Image, path string) error {
	return r.processor.SaveFrame(img, path, processing.FormatFromPath(path), 95, true, false)
}

// ProcessStack is a convenience function that loads, aligns and saves a stack.
// Aligned frames are written as PNG to outputDir, created when missing, and
// their paths returned.
func (r *Registrar) ProcessStack(ctx context.Context, inputs []string, outputDir string) ([]string, stack.Result, error) {
	frames := make([]stack.Frame, len(inputs))
	for i, path := range inputs {
		img, err := r.LoadFrame(path)
		if err != nil {
			return nil, stack.Result{}, fmt.Errorf("failed to load image: %w", err)
		}
		frames[i] = stack.Frame{Name: path, Image: img}
	}

	result, err := r.AlignStack(ctx, frames)
	if err != nil {
		return nil, stack.Result{}, fmt.Errorf("alignment failed: %w", err)
	}

	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, stack.Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := make([]string, len(result.Frames))
	for i, f := range result.Frames {
		outputs[i] = filepath.Join(outputDir, getBaseName(inputs[i])+"_aligned.png")
		if err := r.SaveFrame(f.Image, outputs[i]); err != nil {
			return nil, stack.Result{}, fmt.Errorf("failed to save frame %s: %w", f.Name, err)
		}
	}

	return outputs, result, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// getBaseName extracts the base filename without extension
func getBaseName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
