package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-registration/pkg/types"
)

// createTestImage creates a smooth diagonal gradient in [0, 1]
func createTestImage(rows, cols int) types.Image {
	img := types.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			img.Set(r, c, float64(r+c)/float64(rows+cols-2))
		}
	}
	return img
}

func maxDiff(a, b types.Image) float64 {
	worst := 0.0
	for i := range a.Pix {
		worst = math.Max(worst, math.Abs(a.Pix[i]-b.Pix[i]))
	}
	return worst
}

func TestToImage(t *testing.T) {
	src := image.NewGray(image.Rect(5, 10, 9, 13))
	src.SetGray(5, 10, color.Gray{Y: 255})
	src.SetGray(8, 12, color.Gray{Y: 51})

	img := ToImage(src)
	require.Equal(t, 3, img.Rows)
	require.Equal(t, 4, img.Cols)
	assert.InDelta(t, 1.0, img.At(0, 0), 1e-12)
	assert.InDelta(t, 0.2, img.At(2, 3), 1e-12)
	assert.InDelta(t, 0.0, img.At(1, 1), 1e-12)
}

func TestToImageColor(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{255, 255, 255, 255})
	src.Set(1, 0, color.NRGBA{255, 0, 0, 255})

	img := ToImage(src)
	assert.InDelta(t, 1.0, img.At(0, 0), 1e-12)
	assert.InDelta(t, 0.299, img.At(0, 1), 0.01)
}

func TestFromImage(t *testing.T) {
	img, err := types.FromRows([][]float64{
		{0, 0.5},
		{1, 1.5},
		{-0.25, 0.25},
	})
	require.NoError(t, err)

	out := FromImage(img)
	assert.Equal(t, image.Rect(0, 0, 2, 3), out.Bounds())
	assert.Equal(t, uint16(0), out.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(32768), out.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(0xffff), out.Gray16At(0, 1).Y)
	assert.Equal(t, uint16(0xffff), out.Gray16At(1, 1).Y)
	assert.Equal(t, uint16(0), out.Gray16At(0, 2).Y)

	back := ToImage(out)
	assert.InDelta(t, 0.5, back.At(0, 1), 1e-4)
}

func TestFromImageNormalized(t *testing.T) {
	img, err := types.FromRows([][]float64{{-2, 0, 2}})
	require.NoError(t, err)

	out := FromImageNormalized(img)
	assert.Equal(t, uint16(0), out.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(32768), out.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(0xffff), out.Gray16At(2, 0).Y)

	flat, err := types.FromRows([][]float64{{3, 3}})
	require.NoError(t, err)
	out = FromImageNormalized(flat)
	assert.Equal(t, uint16(0), out.Gray16At(1, 0).Y)
}

func TestSaveAndLoadFrame(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(24, 32)

	tests := []struct {
		format string
		delta  float64
	}{
		{"png", 1e-4},
		{"tiff", 1e-4},
		{"webp", 1.0 / 255},
		{"jpg", 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			path := filepath.Join(dir, "frame."+tt.format)
			require.NoError(t, p.SaveFrame(img, path, tt.format, 95, true, false))

			back, err := p.LoadFrame(path)
			require.NoError(t, err)
			require.Equal(t, img.Rows, back.Rows)
			require.Equal(t, img.Cols, back.Cols)
			assert.LessOrEqual(t, maxDiff(img, back), tt.delta)
		})
	}
}

func TestSaveFrameInvalid(t *testing.T) {
	err := NewProcessor().SaveFrame(types.Image{}, filepath.Join(t.TempDir(), "x.png"), "png", 90, false, false)
	assert.ErrorIs(t, err, types.ErrInvalidImage)
}

func TestLoadImageErrors(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	_, err := p.LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = p.LoadImage(garbage)
	assert.ErrorContains(t, err, "unsupported frame format")
}

func TestLoadImageFromURL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, FromImage(createTestImage(6, 8))))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/frame.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(buf.Bytes())
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	img, err := p.LoadImageSmart(srv.URL + "/frame.png")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 6), img.Bounds().Size())

	_, err = p.LoadImageFromURL(srv.URL + "/page")
	assert.ErrorContains(t, err, "does not point to an image")

	_, err = p.LoadImageFromURL(srv.URL + "/missing")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = p.LoadImageFromURL("ftp://example.com/frame.png")
	assert.ErrorContains(t, err, "unsupported URL scheme")
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"a.png":      "png",
		"a.JPEG":     "jpg",
		"a.jpg":      "jpg",
		"dir/a.tif":  "tiff",
		"a.webp":     "webp",
		"noext":      "png",
		"a.tar.tiff": "tiff",
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatFromPath(path), path)
	}
}

func BenchmarkToImage(b *testing.B) {
	src := FromImage(createTestImage(256, 256))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ToImage(src)
	}
}
