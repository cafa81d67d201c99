// Package cropper computes and applies the crop window that stays free of
// wrap-around artifacts across a stack of circularly shifted images.
package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-registration/pkg/types"
)

// GetCropWindow returns the region of a rows x cols grid that is valid for
// every image after each has been shifted by its own (shiftsAxis0[i], shiftsAxis1[i]).
//
// A positive shift wraps ceil(shift) pixels in at the leading edge and a
// negative one floor(-shift) pixels at the trailing edge, so the window is
// bounded by the extreme shifts. The result may be inverted when the shifts
// are too large; check it with CropWindow.Valid.
func GetCropWindow(rows, cols int, shiftsAxis0, shiftsAxis1 []float64) (types.CropWindow, error) {
	if len(shiftsAxis0) == 0 || len(shiftsAxis1) == 0 {
		return types.CropWindow{}, types.ErrEmptyShifts
	}
	if len(shiftsAxis0) != len(shiftsAxis1) {
		return types.CropWindow{}, fmt.Errorf("%w: %d row shifts vs %d column shifts",
			types.ErrEmptyShifts, len(shiftsAxis0), len(shiftsAxis1))
	}
	if rows < 1 || cols < 1 {
		return types.CropWindow{}, fmt.Errorf("%w: shape %dx%d", types.ErrInvalidImage, rows, cols)
	}

	rowStart, rowEnd := axisWindow(rows, shiftsAxis0)
	colStart, colEnd := axisWindow(cols, shiftsAxis1)
	return types.CropWindow{
		RowStart: rowStart,
		RowEnd:   rowEnd,
		ColStart: colStart,
		ColEnd:   colEnd,
	}, nil
}

// WindowFromShifts is GetCropWindow for a slice of shift vectors
func WindowFromShifts(rows, cols int, shifts []types.ShiftVector) (types.CropWindow, error) {
	s0 := make([]float64, len(shifts))
	s1 := make([]float64, len(shifts))
	for i, v := range shifts {
		s0[i], s1[i] = v.DY, v.DX
	}
	return GetCropWindow(rows, cols, s0, s1)
}

// snap is how close a measured shift must be to an integer to be rounded to it
const snap = 1e-6

func axisWindow(n int, shifts []float64) (int, int) {
	lo, hi := shifts[0], shifts[0]
	for _, s := range shifts[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	start := math.Max(0, math.Ceil(hi-snap))
	end := math.Min(float64(n), math.Floor(float64(n)+lo+snap))
	return int(start), int(end)
}

// Apply extracts the window from img
func Apply(img types.Image, w types.CropWindow) (types.Image, error) {
	if err := img.Validate(); err != nil {
		return types.Image{}, err
	}
	if !w.Valid(img.Rows, img.Cols) {
		return types.Image{}, fmt.Errorf("%w: %s for shape %dx%d", types.ErrInvalidCropWindow, w, img.Rows, img.Cols)
	}

	out := types.NewImage(w.Rows(), w.Cols())
	for r := 0; r < out.Rows; r++ {
		src := (w.RowStart+r)*img.Cols + w.ColStart
		copy(out.Pix[r*out.Cols:(r+1)*out.Cols], img.Pix[src:src+out.Cols])
	}
	return out, nil
}

// ApplyAll crops every image of a stack with the same window
func ApplyAll(imgs []types.Image, w types.CropWindow) ([]types.Image, error) {
	out := make([]types.Image, 0, len(imgs))
	for i, img := range imgs {
		cropped, err := Apply(img, w)
		if err != nil {
			return nil, fmt.Errorf("failed to crop image %d: %w", i, err)
		}
		out = append(out, cropped)
	}
	return out, nil
}

// ApplyDecoded crops a decoded image, whose rows and columns map to Y and X
func ApplyDecoded(img image.Image, w types.CropWindow) (image.Image, error) {
	b := img.Bounds()
	if !w.Valid(b.Dy(), b.Dx()) {
		return nil, fmt.Errorf("%w: %s for %dx%d image", types.ErrInvalidCropWindow, w, b.Dx(), b.Dy())
	}
	rect := image.Rect(w.ColStart, w.RowStart, w.ColEnd, w.RowEnd).Add(b.Min)
	return imaging.Crop(img, rect), nil
}
