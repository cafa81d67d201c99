// Package vision scores frames by edge energy so the sharpest frame of a
// stack can serve as the registration reference.
package vision

import (
	"math"
	"sort"

	"github.com/menta2k/image-registration/pkg/types"
)

// SharpnessScorer rates frames by mean edge energy
type SharpnessScorer struct {
	config ScoreConfig
}

// ScoreConfig holds configuration for sharpness scoring
type ScoreConfig struct {
	// EdgeThreshold is the normalized edge energy below which a pixel is
	// treated as flat
	EdgeThreshold float64
	// Border is the number of pixels skipped at every edge
	Border int
}

// New creates a new SharpnessScorer with default configuration
func New() *SharpnessScorer {
	return &SharpnessScorer{
		config: ScoreConfig{
			EdgeThreshold: 0.01,
			Border:        1,
		},
	}
}

// NewWithConfig creates a new SharpnessScorer with custom configuration
func NewWithConfig(config ScoreConfig) *SharpnessScorer {
	if config.Border < 1 {
		config.Border = 1
	}
	return &SharpnessScorer{config: config}
}

// Score is the rating of one frame
type Score struct {
	Index      int
	Sharpness  float64
	Brightness float64
}

var neighbors = [][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// Score rates a single frame. Sharpness is the mean squared difference to the
// 8 neighbors, normalized by the squared value range of the frame.
func (s *SharpnessScorer) Score(img types.Image) Score {
	if img.Validate() != nil {
		return Score{}
	}
	lo, hi := img.Pix[0], img.Pix[0]
	var sum float64
	for _, v := range img.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	score := Score{Brightness: sum / float64(len(img.Pix))}

	span := hi - lo
	b := s.config.Border
	if span == 0 || img.Rows <= 2*b || img.Cols <= 2*b {
		return score
	}

	var edges float64
	var count int
	for y := b; y < img.Rows-b; y++ {
		for x := b; x < img.Cols-b; x++ {
			current := img.At(y, x)
			var strength float64
			for _, off := range neighbors {
				d := current - img.At(y+off[0], x+off[1])
				strength += d * d
			}
			strength /= 8 * span * span
			if strength >= s.config.EdgeThreshold {
				edges += strength
			}
			count++
		}
	}
	score.Sharpness = edges / float64(count)
	return score
}

// Rank scores every frame, sharpest first. Ties keep stack order.
func (s *SharpnessScorer) Rank(imgs []types.Image) []Score {
	scores := make([]Score, len(imgs))
	for i, img := range imgs {
		scores[i] = s.Score(img)
		scores[i].Index = i
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Sharpness > scores[j].Sharpness
	})
	return scores
}

// SelectReference returns the index of the sharpest frame
func (s *SharpnessScorer) SelectReference(imgs []types.Image) (int, error) {
	if len(imgs) == 0 {
		return 0, types.ErrEmptyStack
	}
	for _, img := range imgs {
		if err := img.Validate(); err != nil {
			return 0, err
		}
	}
	return s.Rank(imgs)[0].Index, nil
}
