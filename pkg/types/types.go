package types

import "fmt"

// Image is a 2D grid of real-valued samples stored row-major.
// Operations in this module never modify an Image they receive.
type Image struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Pix  []float64 `json:"-"`
}

// NewImage allocates a zero-filled image of the given shape
func NewImage(rows, cols int) Image {
	return Image{Rows: rows, Cols: cols, Pix: make([]float64, rows*cols)}
}

// FromRows builds an image from a slice of equally sized rows
func FromRows(rows [][]float64) (Image, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Image{}, fmt.Errorf("%w: empty grid", ErrInvalidImage)
	}
	img := NewImage(len(rows), len(rows[0]))
	for r, row := range rows {
		if len(row) != img.Cols {
			return Image{}, fmt.Errorf("%w: row %d has %d samples, expected %d", ErrInvalidImage, r, len(row), img.Cols)
		}
		copy(img.Pix[r*img.Cols:], row)
	}
	return img, nil
}

// At returns the sample at row r, column c
func (img Image) At(r, c int) float64 {
	return img.Pix[r*img.Cols+c]
}

// Set stores a sample; only used while an image is being built
func (img Image) Set(r, c int, v float64) {
	img.Pix[r*img.Cols+c] = v
}

// Shape returns (rows, cols)
func (img Image) Shape() (int, int) {
	return img.Rows, img.Cols
}

// SameShape reports whether both images have identical dimensions
func (img Image) SameShape(other Image) bool {
	return img.Rows == other.Rows && img.Cols == other.Cols
}

// Validate checks that the image has a usable shape and backing buffer
func (img Image) Validate() error {
	if img.Rows < 1 || img.Cols < 1 {
		return fmt.Errorf("%w: shape %dx%d", ErrInvalidImage, img.Rows, img.Cols)
	}
	if len(img.Pix) != img.Rows*img.Cols {
		return fmt.Errorf("%w: %d samples for shape %dx%d", ErrInvalidImage, len(img.Pix), img.Rows, img.Cols)
	}
	return nil
}

// Clone returns a deep copy
func (img Image) Clone() Image {
	out := NewImage(img.Rows, img.Cols)
	copy(out.Pix, img.Pix)
	return out
}

// Spectrum is the complex 2D transform of an Image, same shape, row-major.
type Spectrum struct {
	Rows int
	Cols int
	Data []complex128
}

// NewSpectrum allocates a zero-filled spectrum
func NewSpectrum(rows, cols int) Spectrum {
	return Spectrum{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns the coefficient at row r, column c
func (s Spectrum) At(r, c int) complex128 {
	return s.Data[r*s.Cols+c]
}

// SameShape reports whether both spectra have identical dimensions
func (s Spectrum) SameShape(other Spectrum) bool {
	return s.Rows == other.Rows && s.Cols == other.Cols
}

// ShiftVector is a displacement along rows (DY) and columns (DX).
// Shifting by a positive vector moves content toward increasing indices.
type ShiftVector struct {
	DY float64 `json:"dy"`
	DX float64 `json:"dx"`
}

// Negate returns the opposite displacement
func (v ShiftVector) Negate() ShiftVector {
	return ShiftVector{DY: -v.DY, DX: -v.DX}
}

// IsZero reports whether the vector is exactly (0, 0)
func (v ShiftVector) IsZero() bool {
	return v.DY == 0 && v.DX == 0
}

func (v ShiftVector) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", v.DY, v.DX)
}

// OffsetResult is the outcome of an offset measurement
type OffsetResult struct {
	Shift ShiftVector `json:"shift"`
	// Logs is nil unless requested; otherwise coarse, refined and timing lines in that order
	Logs []string `json:"logs,omitempty"`
}

// CropWindow delimits the wrap-free region [RowStart,RowEnd) x [ColStart,ColEnd)
type CropWindow struct {
	RowStart int `json:"row_start"`
	RowEnd   int `json:"row_end"`
	ColStart int `json:"col_start"`
	ColEnd   int `json:"col_end"`
}

// Rows returns the window height, which may be negative for an inverted window
func (w CropWindow) Rows() int {
	return w.RowEnd - w.RowStart
}

// Cols returns the window width, which may be negative for an inverted window
func (w CropWindow) Cols() int {
	return w.ColEnd - w.ColStart
}

// Valid reports whether the window is a non-empty rectangle inside a rows x cols grid
func (w CropWindow) Valid(rows, cols int) bool {
	return w.RowStart >= 0 && w.RowStart < w.RowEnd && w.RowEnd <= rows &&
		w.ColStart >= 0 && w.ColStart < w.ColEnd && w.ColEnd <= cols
}

func (w CropWindow) String() string {
	return fmt.Sprintf("rows [%d:%d] cols [%d:%d]", w.RowStart, w.RowEnd, w.ColStart, w.ColEnd)
}
