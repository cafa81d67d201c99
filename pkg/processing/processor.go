package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-registration/pkg/types"
)

// Processor handles frame I/O and conversion between decoded images and
// grayscale sample grids
type Processor struct {
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// maxDownload bounds the size of a frame fetched over http
const maxDownload = 256 << 20

// LoadImageFromURL downloads and decodes a frame served over http(s)
func (p *Processor) LoadImageFromURL(frameURL string) (image.Image, error) {
	u, err := url.Parse(frameURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if !isHTTP(u.Scheme) {
		return nil, fmt.Errorf("unsupported URL scheme: %q (want http or https)", u.Scheme)
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Image-Registration/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download frame: %w", err)
	}
	defer resp.Body.Close()

	switch ct := resp.Header.Get("Content-Type"); {
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to download frame: HTTP %d", resp.StatusCode)
	case !strings.HasPrefix(ct, "image/"):
		return nil, fmt.Errorf("%s does not point to an image (Content-Type: %s)", frameURL, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("failed to read frame data: %w", err)
	}
	return p.decodeImageFromBytes(data)
}

// LoadImage loads an image from a file path with WebP and TIFF support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, path)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if scheme, _, ok := strings.Cut(source, "://"); ok && isHTTP(scheme) {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

func isHTTP(scheme string) bool {
	return strings.EqualFold(scheme, "http") || strings.EqualFold(scheme, "https")
}

// LoadFrame loads a source and converts it to a grayscale sample grid
func (p *Processor) LoadFrame(source string) (types.Image, error) {
	img, err := p.LoadImageSmart(source)
	if err != nil {
		return types.Image{}, err
	}
	return ToImage(img), nil
}

// decodeImageFromBytes tries the registered decoders, then the cgo webp
// decoder for files the pure-Go one rejects (animated or extended webp)
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, nil
	}
	return nil, fmt.Errorf("unsupported frame format: %w", err)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	case "tif", "tiff":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return imaging.Encode(f, img, imaging.TIFF)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// SaveFrame writes a sample grid, mapping [0, 1] to the full 16-bit range
// or stretching its own range when normalize is set
func (p *Processor) SaveFrame(img types.Image, path, format string, quality int, lossless bool, normalize bool) error {
	if err := img.Validate(); err != nil {
		return err
	}
	var out image.Image = FromImage(img)
	if normalize {
		out = FromImageNormalized(img)
	}
	return p.SaveImage(out, path, format, quality, lossless)
}

// FormatFromPath returns the output format implied by a file extension
func FormatFromPath(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	case "":
		return "png"
	default:
		return ext
	}
}

// ToImage converts a decoded image to luminance samples in [0, 1].
// Rows follow Y and columns follow X, starting at the bounds' minimum point.
func ToImage(img image.Image) types.Image {
	b := img.Bounds()
	out := types.NewImage(b.Dy(), b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y)/0xffff)
		}
	}
	return out
}

// FromImage converts samples in [0, 1] to a 16-bit grayscale image, clamping
// values outside the range
func FromImage(img types.Image) *image.Gray16 {
	return toGray16(img, 0, 1)
}

// FromImageNormalized stretches the image's own value range to 16 bits.
// A constant image maps to black.
func FromImageNormalized(img types.Image) *image.Gray16 {
	lo, hi := img.Pix[0], img.Pix[0]
	for _, v := range img.Pix[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return toGray16(img, lo, hi)
}

func toGray16(img types.Image, lo, hi float64) *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, img.Cols, img.Rows))
	if hi <= lo {
		return out
	}
	scale := 0xffff / (hi - lo)
	for r := 0; r < img.Rows; r++ {
		for c := 0; c < img.Cols; c++ {
			v := clamp((img.At(r, c)-lo)*scale, 0, 0xffff)
			out.SetGray16(c, r, color.Gray16{Y: uint16(math.Round(v))})
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
