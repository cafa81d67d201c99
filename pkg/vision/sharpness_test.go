package vision

import (
	"testing"

	"github.com/menta2k/image-registration/pkg/types"
)

// createTestImage creates a frame with a bright square on a dark background
func createTestImage(rows, cols int) types.Image {
	img := types.NewImage(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if r > rows/4 && r < 3*rows/4 && c > cols/4 && c < cols/2 {
				img.Set(r, c, 1)
			}
		}
	}
	return img
}

// boxBlur averages each interior pixel with its 8 neighbors
func boxBlur(img types.Image) types.Image {
	out := img.Clone()
	for r := 1; r < img.Rows-1; r++ {
		for c := 1; c < img.Cols-1; c++ {
			sum := img.At(r, c)
			for _, off := range neighbors {
				sum += img.At(r+off[0], c+off[1])
			}
			out.Set(r, c, sum/9)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	scorer := New()
	if scorer == nil {
		t.Fatal("New() returned nil")
	}
	if scorer.config.EdgeThreshold != 0.01 {
		t.Errorf("Expected edge threshold 0.01, got %f", scorer.config.EdgeThreshold)
	}
}

func TestNewWithConfig(t *testing.T) {
	scorer := NewWithConfig(ScoreConfig{EdgeThreshold: 0.2})
	if scorer.config.EdgeThreshold != 0.2 {
		t.Errorf("Expected edge threshold 0.2, got %f", scorer.config.EdgeThreshold)
	}
	if scorer.config.Border != 1 {
		t.Errorf("Expected border clamped to 1, got %d", scorer.config.Border)
	}
}

func TestScore(t *testing.T) {
	scorer := New()
	sharp := createTestImage(40, 40)
	blurred := boxBlur(sharp)

	s1 := scorer.Score(sharp)
	s2 := scorer.Score(blurred)
	if s1.Sharpness <= s2.Sharpness {
		t.Errorf("Expected sharp frame to score higher: %f vs %f", s1.Sharpness, s2.Sharpness)
	}
	if s1.Brightness <= 0 || s1.Brightness >= 1 {
		t.Errorf("Expected brightness in (0, 1), got %f", s1.Brightness)
	}
}

func TestScoreScaleInvariant(t *testing.T) {
	scorer := New()
	img := createTestImage(20, 20)
	scaled := img.Clone()
	for i := range scaled.Pix {
		scaled.Pix[i] = 10 + 250*scaled.Pix[i]
	}

	a, b := scorer.Score(img).Sharpness, scorer.Score(scaled).Sharpness
	if diff := a - b; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("Expected equal sharpness, got %f and %f", a, b)
	}
}

func TestScoreFlatAndDegenerate(t *testing.T) {
	scorer := New()

	flat := types.NewImage(10, 10)
	for i := range flat.Pix {
		flat.Pix[i] = 0.5
	}
	if s := scorer.Score(flat); s.Sharpness != 0 || s.Brightness != 0.5 {
		t.Errorf("Unexpected score for a flat frame: %+v", s)
	}

	if s := scorer.Score(types.NewImage(2, 2)); s.Sharpness != 0 {
		t.Errorf("Expected zero sharpness for a frame without interior, got %f", s.Sharpness)
	}

	if s := scorer.Score(types.Image{}); s != (Score{}) {
		t.Errorf("Expected zero score for an invalid frame, got %+v", s)
	}
}

func TestRankAndSelectReference(t *testing.T) {
	scorer := New()
	sharp := createTestImage(32, 32)
	blurred := boxBlur(sharp)
	blurrier := boxBlur(blurred)

	imgs := []types.Image{blurrier, sharp, blurred}
	ranked := scorer.Rank(imgs)
	order := []int{ranked[0].Index, ranked[1].Index, ranked[2].Index}
	if order[0] != 1 || order[1] != 2 || order[2] != 0 {
		t.Errorf("Expected order [1 2 0], got %v", order)
	}

	ref, err := scorer.SelectReference(imgs)
	if err != nil {
		t.Fatalf("SelectReference failed: %v", err)
	}
	if ref != 1 {
		t.Errorf("Expected reference 1, got %d", ref)
	}
}

func TestSelectReferenceErrors(t *testing.T) {
	scorer := New()
	if _, err := scorer.SelectReference(nil); err != types.ErrEmptyStack {
		t.Errorf("Expected ErrEmptyStack, got %v", err)
	}
	if _, err := scorer.SelectReference([]types.Image{types.NewImage(4, 4), {}}); err == nil {
		t.Error("Expected error for an invalid frame")
	}
}

func TestSelectReferenceTiesKeepOrder(t *testing.T) {
	img := createTestImage(16, 16)
	ref, err := New().SelectReference([]types.Image{img, img.Clone()})
	if err != nil {
		t.Fatalf("SelectReference failed: %v", err)
	}
	if ref != 0 {
		t.Errorf("Expected first of equal frames, got %d", ref)
	}
}

func BenchmarkScore(b *testing.B) {
	scorer := New()
	img := createTestImage(256, 256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		scorer.Score(img)
	}
}
