package correlation

import (
	"errors"
	"math"
	"math/cmplx"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-registration/pkg/transform"
	"github.com/menta2k/image-registration/pkg/types"
)

// createGaussian creates a single isolated bump centered at (cy, cx)
func createGaussian(rows, cols int, cy, cx, sigma float64) types.Image {
	img := types.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dy, dx := float64(r)-cy, float64(c)-cx
			img.Set(r, c, math.Exp(-(dy*dy+dx*dx)/(2*sigma*sigma)))
		}
	}
	return img
}

// roll circularly translates img by whole pixels: out[r][c] = in[r-dy][c-dx]
func roll(img types.Image, dy, dx int) types.Image {
	out := types.NewImage(img.Rows, img.Cols)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			sr := ((r-dy)%img.Rows + img.Rows) % img.Rows
			sc := ((c-dx)%img.Cols + img.Cols) % img.Cols
			out.Set(r, c, img.At(sr, sc))
		}
	}
	return out
}

// rampSpectrum applies an exact circular sub-pixel translation to a spectrum
func rampSpectrum(s types.Spectrum, v types.ShiftVector) types.Spectrum {
	out := types.NewSpectrum(s.Rows, s.Cols)
	f0 := transform.Frequencies(s.Rows)
	f1 := transform.Frequencies(s.Cols)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			phase := -2 * math.Pi * (v.DY*f0[r]/float64(s.Rows) + v.DX*f1[c]/float64(s.Cols))
			out.Data[r*s.Cols+c] = s.At(r, c) * cmplx.Exp(complex(0, phase))
		}
	}
	return out
}

func TestNew(t *testing.T) {
	p := New()
	require.NotNil(t, p)
	assert.Equal(t, 3, p.config.WindowHalfWidth)
	assert.Equal(t, 0.5, p.config.Threshold)
	assert.Equal(t, transform.Gonum, p.Provider().Name())
}

func TestNewWithConfigNilProvider(t *testing.T) {
	p := NewWithConfig(nil, Config{WindowHalfWidth: 2, Threshold: 0.4})
	require.NotNil(t, p.Provider())
	assert.Equal(t, 2, p.config.WindowHalfWidth)
}

func TestMeasureOffsetIntegerShift(t *testing.T) {
	img := createGaussian(64, 64, 32, 32, 2)

	tests := []struct {
		name   string
		dy, dx int
	}{
		{"zero", 0, 0},
		{"down right", 5, 3},
		{"up left", -7, -2},
		{"mixed", 12, -15},
	}

	for _, provider := range []transform.Provider{transform.NewGonum(), transform.NewDSP()} {
		p := NewWithConfig(provider, DefaultConfig())
		for _, tt := range tests {
			t.Run(provider.Name()+"/"+tt.name, func(t *testing.T) {
				res, err := p.MeasureOffset(img, roll(img, tt.dy, tt.dx), false)
				require.NoError(t, err)
				assert.InDelta(t, float64(tt.dy), res.Shift.DY, 1e-6)
				assert.InDelta(t, float64(tt.dx), res.Shift.DX, 1e-6)
				assert.Nil(t, res.Logs)
			})
		}
	}
}

func TestMeasureOffsetReversedOrder(t *testing.T) {
	img := createGaussian(48, 40, 20, 22, 2)
	moved := roll(img, 4, -6)

	res, err := New().MeasureOffset(moved, img, false)
	require.NoError(t, err)
	assert.InDelta(t, -4, res.Shift.DY, 1e-6)
	assert.InDelta(t, 6, res.Shift.DX, 1e-6)
}

func TestMeasureOffsetFromSpectraHalfPixel(t *testing.T) {
	p := New()
	img := createGaussian(65, 65, 32, 32, 2)
	f0 := p.Provider().Forward(img)

	for _, v := range []types.ShiftVector{
		{DY: 0.5, DX: -1.5},
		{DY: -3.5, DX: 2.5},
		{DY: 10, DX: 0.5},
	} {
		res, err := p.MeasureOffsetFromSpectra(f0, rampSpectrum(f0, v), false)
		require.NoError(t, err)
		assert.InDelta(t, v.DY, res.Shift.DY, 0.05, "shift %v", v)
		assert.InDelta(t, v.DX, res.Shift.DX, 0.05, "shift %v", v)
	}
}

// The half-peak threshold admits a neighbor of the coarse peak only when the
// fractional part lies roughly between 1/3 and 2/3. Nearer fractions snap to
// the integer; when both axes fall in that band the missing diagonal cell
// pulls both estimates toward the integers.
func TestMeasureOffsetFromSpectraFractionalBias(t *testing.T) {
	p := New()
	img := createGaussian(65, 65, 32, 32, 2)
	f0 := p.Provider().Forward(img)

	tests := []struct {
		name  string
		shift types.ShiftVector
		want  types.ShiftVector
		delta float64
	}{
		{"quarter snaps", types.ShiftVector{DY: 2.25, DX: 1.10}, types.ShiftVector{DY: 2, DX: 1}, 1e-6},
		{"near integers snap", types.ShiftVector{DY: 0.3, DX: -1.7}, types.ShiftVector{DY: 0, DX: -2}, 1e-6},
		{"small fractions snap", types.ShiftVector{DY: 1.2, DX: -0.25}, types.ShiftVector{DY: 1, DX: 0}, 1e-6},
		{"one axis in band", types.ShiftVector{DY: -3.8, DX: 0.6}, types.ShiftVector{DY: -4, DX: 0.6}, 1e-3},
		{"other axis in band", types.ShiftVector{DY: 1.65, DX: 0.7}, types.ShiftVector{DY: 1.65, DX: 1}, 1e-3},
		{"both axes in band", types.ShiftVector{DY: 3.6, DX: -0.6}, types.ShiftVector{DY: 3.714, DX: -0.714}, 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.MeasureOffsetFromSpectra(f0, rampSpectrum(f0, tt.shift), false)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.DY, res.Shift.DY, tt.delta)
			assert.InDelta(t, tt.want.DX, res.Shift.DX, tt.delta)
		})
	}
}

func TestMeasureOffsetShapeMismatch(t *testing.T) {
	p := New()
	res, err := p.MeasureOffset(types.NewImage(8, 8), types.NewImage(8, 9), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
	assert.Equal(t, types.OffsetResult{}, res)

	_, err = p.MeasureOffsetFromSpectra(types.NewSpectrum(4, 4), types.NewSpectrum(5, 4), true)
	assert.ErrorIs(t, err, types.ErrShapeMismatch)
}

func TestMeasureOffsetInvalidImage(t *testing.T) {
	_, err := New().MeasureOffset(types.Image{Rows: 2, Cols: 2}, types.NewImage(2, 2), false)
	assert.ErrorIs(t, err, types.ErrInvalidImage)
}

func TestMeasureOffsetDeterministic(t *testing.T) {
	p := New()
	img := createGaussian(32, 32, 14, 17, 1.5)
	f0 := p.Provider().Forward(img)
	f1 := rampSpectrum(f0, types.ShiftVector{DY: 1.5, DX: -2.5})

	first, err := p.MeasureOffsetFromSpectra(f0, f1, false)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := p.MeasureOffsetFromSpectra(f0, f1, false)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMeasureOffsetWithLog(t *testing.T) {
	p := New()
	calls := 0
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(250 * time.Millisecond)
	}

	img := createGaussian(32, 32, 16, 16, 2)
	res, err := p.MeasureOffset(img, roll(img, 2, -3), true)
	require.NoError(t, err)
	require.Len(t, res.Logs, 3)

	assert.True(t, strings.HasPrefix(res.Logs[0], "coarse result"))
	assert.Contains(t, res.Logs[0], "2 -3")
	assert.True(t, strings.HasPrefix(res.Logs[1], "refined result"))
	assert.Contains(t, res.Logs[1], "2.000 -3.000")
	assert.Contains(t, res.Logs[2], "0.250s")
}

func TestMeasureOffsetDegenerateSpectrum(t *testing.T) {
	p := New()

	flat := types.NewImage(16, 16)
	for i := range flat.Pix {
		flat.Pix[i] = 3
	}
	zero := types.NewImage(16, 16)

	for i, pair := range [][2]types.Image{{flat, flat}, {zero, zero}, {flat, zero}} {
		res, err := p.MeasureOffset(pair[0], pair[1], true)
		require.NoError(t, err)
		assert.Equal(t, types.ShiftVector{}, res.Shift, "pair %d", i)
		require.Len(t, res.Logs, 3)
		assert.Equal(t, "coarse result: 0 0", res.Logs[0], "pair %d", i)
		assert.Equal(t, "refined result: 0.000 0.000", res.Logs[1], "pair %d", i)
	}
}

func TestMeasureOffsetBlankFrameAgainstContent(t *testing.T) {
	img := createGaussian(16, 16, 8, 8, 1.5)
	res, err := New().MeasureOffset(img, types.NewImage(16, 16), false)
	require.NoError(t, err)
	assert.Equal(t, types.ShiftVector{}, res.Shift)
}

func TestCentroidClipsWindow(t *testing.T) {
	p := New()
	surface := types.NewImage(8, 8)
	surface.Set(0, 0, 1)
	surface.Set(0, 1, 1)
	surface.Set(7, 7, 0.9)

	x0, x1 := p.centroid(surface, 0, 0, 1)
	assert.InDelta(t, 0, x0, 1e-12)
	assert.InDelta(t, 0.5, x1, 1e-12)

	x0, x1 = p.centroid(surface, 7, 7, 0.9)
	assert.InDelta(t, 7, x0, 1e-12)
	assert.InDelta(t, 7, x1, 1e-12)
}

func TestCentroidFlatSurface(t *testing.T) {
	p := New()
	x0, x1 := p.centroid(types.NewImage(5, 5), 2, 3, 0)
	assert.Equal(t, 2.0, x0)
	assert.Equal(t, 3.0, x1)
}

func TestArgmaxFirstOnTies(t *testing.T) {
	img := types.NewImage(3, 3)
	img.Set(1, 2, 4)
	img.Set(2, 0, 4)

	r, c, v := argmax(img)
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 4.0, v)
}

func BenchmarkMeasureOffset(b *testing.B) {
	p := New()
	img := createGaussian(128, 128, 64, 64, 3)
	moved := roll(img, 7, -4)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.MeasureOffset(img, moved, false)
	}
}
