// Package stack aligns a sequence of same-shaped frames onto a reference frame
// and crops the aligned stack to the region free of wrap-around artifacts.
package stack

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/image-registration/pkg/correlation"
	"github.com/menta2k/image-registration/pkg/cropper"
	"github.com/menta2k/image-registration/pkg/log"
	"github.com/menta2k/image-registration/pkg/shift"
	"github.com/menta2k/image-registration/pkg/types"
)

// Config controls how a stack is aligned
type Config struct {
	// Reference is the index of the frame every other frame is aligned onto
	Reference int
	// Method selects the shift strategy; Auto picks by priority
	Method shift.Method
	// Crop trims every aligned frame to the common valid window when it is non-empty
	Crop bool
	// Workers bounds concurrent frames; zero uses GOMAXPROCS
	Workers int
	// WithLog keeps the correlator's diagnostic lines on each frame result
	WithLog bool
}

// DefaultConfig aligns onto the first frame and crops
func DefaultConfig() Config {
	return Config{
		Reference: 0,
		Method:    shift.Auto,
		Crop:      true,
	}
}

// Frame is a named image in a stack
type Frame struct {
	Name  string
	Image types.Image
}

// FrameResult is the outcome for one frame
type FrameResult struct {
	Name string
	// Offset is the frame's measured offset relative to the reference
	Offset types.OffsetResult
	// Applied is the shift that was applied, the negated offset
	Applied types.ShiftVector
	Image   types.Image
}

// Result is the outcome for a whole stack
type Result struct {
	Frames   []FrameResult
	Window   types.CropWindow
	Cropped  bool
	Method   shift.Method
	Duration time.Duration
}

// Shifts returns the applied shift of every frame in stack order
func (r Result) Shifts() []types.ShiftVector {
	out := make([]types.ShiftVector, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Applied
	}
	return out
}

// Images returns the aligned images in stack order
func (r Result) Images() []types.Image {
	out := make([]types.Image, len(r.Frames))
	for i, f := range r.Frames {
		out[i] = f.Image
	}
	return out
}

// Aligner registers stacks with a correlator and a shifter
type Aligner struct {
	correlator *correlation.PhaseCorrelator
	shifter    *shift.Shifter
	logger     log.Logger
	config     Config
}

// New creates an Aligner with default components and configuration
func New() *Aligner {
	return NewWithConfig(correlation.New(), shift.New(), log.NewNoopLogger(), DefaultConfig())
}

// NewWithConfig creates an Aligner from explicit components
func NewWithConfig(correlator *correlation.PhaseCorrelator, shifter *shift.Shifter, logger log.Logger, config Config) *Aligner {
	if correlator == nil {
		correlator = correlation.New()
	}
	if shifter == nil {
		shifter = shift.New()
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Aligner{
		correlator: correlator,
		shifter:    shifter,
		logger:     logger,
		config:     config,
	}
}

// Align measures every frame against the reference, shifts it into place and
// computes the common crop window of the applied shifts.
func (a *Aligner) Align(ctx context.Context, frames []Frame) (Result, error) {
	start := time.Now()
	if len(frames) == 0 {
		return Result{}, types.ErrEmptyStack
	}
	refIdx := a.config.Reference
	if refIdx < 0 || refIdx >= len(frames) {
		return Result{}, fmt.Errorf("reference frame %d out of range for %d frames", refIdx, len(frames))
	}

	ref := frames[refIdx].Image
	if err := ref.Validate(); err != nil {
		return Result{}, fmt.Errorf("reference frame %q: %w", frames[refIdx].Name, err)
	}
	for i, f := range frames {
		if err := f.Image.Validate(); err != nil {
			return Result{}, fmt.Errorf("frame %d (%s): %w", i, f.Name, err)
		}
		if !f.Image.SameShape(ref) {
			return Result{}, fmt.Errorf("frame %d (%s): %w: %dx%d vs reference %dx%d",
				i, f.Name, types.ErrShapeMismatch, f.Image.Rows, f.Image.Cols, ref.Rows, ref.Cols)
		}
	}

	method := a.shifter.Resolve(a.config.Method)
	a.logger.Info("aligning stack",
		log.Int("frames", len(frames)),
		log.Int("reference", refIdx),
		log.String("method", method.String()),
		log.String("transform", a.correlator.Provider().Name()),
	)

	refSpec, err := a.correlator.Spectrum(ref)
	if err != nil {
		return Result{}, err
	}

	results := make([]FrameResult, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i := range frames {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.alignFrame(refSpec, frames[i], i == refIdx, method)
			if err != nil {
				return fmt.Errorf("frame %d (%s): %w", i, frames[i].Name, err)
			}
			results[i] = res
			a.logger.Debug("frame aligned",
				log.Int("frame", i),
				log.String("name", frames[i].Name),
				log.Float64("dy", res.Offset.Shift.DY),
				log.Float64("dx", res.Offset.Shift.DX),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{Frames: results, Method: method}
	out.Window, err = cropper.WindowFromShifts(ref.Rows, ref.Cols, out.Shifts())
	if err != nil {
		return Result{}, err
	}

	if a.config.Crop {
		if out.Window.Valid(ref.Rows, ref.Cols) {
			cropped, err := cropper.ApplyAll(out.Images(), out.Window)
			if err != nil {
				return Result{}, err
			}
			for i := range out.Frames {
				out.Frames[i].Image = cropped[i]
			}
			out.Cropped = true
		} else {
			a.logger.Warn("crop window is empty, frames left uncropped",
				log.String("window", out.Window.String()))
		}
	}

	out.Duration = time.Since(start)
	a.logger.Info("stack aligned",
		log.String("window", out.Window.String()),
		log.Bool("cropped", out.Cropped),
		log.Duration("elapsed", out.Duration),
	)
	return out, nil
}

func (a *Aligner) alignFrame(refSpec types.Spectrum, f Frame, isRef bool, method shift.Method) (FrameResult, error) {
	if isRef {
		res := FrameResult{Name: f.Name, Image: f.Image.Clone()}
		if a.config.WithLog {
			res.Offset.Logs = []string{"reference frame"}
		}
		return res, nil
	}

	spec, err := a.correlator.Spectrum(f.Image)
	if err != nil {
		return FrameResult{}, err
	}
	offset, err := a.correlator.MeasureOffsetFromSpectra(refSpec, spec, a.config.WithLog)
	if err != nil {
		return FrameResult{}, err
	}

	applied := offset.Shift.Negate()
	aligned, err := a.shifter.Shift(f.Image, applied, method)
	if err != nil {
		return FrameResult{}, err
	}
	return FrameResult{
		Name:    f.Name,
		Offset:  offset,
		Applied: applied,
		Image:   aligned,
	}, nil
}

func (a *Aligner) workers() int {
	if a.config.Workers > 0 {
		return a.config.Workers
	}
	return runtime.GOMAXPROCS(0)
}
