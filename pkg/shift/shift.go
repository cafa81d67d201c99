// Package shift applies sub-pixel translations to images with periodic
// (wrap-around) boundaries. Three interchangeable strategies are provided and a
// Shifter picks one per call from the set it was constructed with.
package shift

import (
	"fmt"
	"strings"

	"github.com/menta2k/image-registration/pkg/transform"
	"github.com/menta2k/image-registration/pkg/types"
)

// Method identifies a shift strategy
type Method int

const (
	// Auto selects the highest priority available strategy
	Auto Method = iota
	FFT
	Bilinear
	Library
)

// priority is the order Auto walks the available strategies
var priority = []Method{Bilinear, Library, FFT}

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case FFT:
		return "fft"
	case Bilinear:
		return "bilinear"
	case Library:
		return "library"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a case-insensitive name to a Method.
// An empty name or "auto" selects Auto; unrecognized names select FFT.
func ParseMethod(name string) Method {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return Auto
	case "bilinear":
		return Bilinear
	case "library":
		return Library
	default:
		return FFT
	}
}

// Methods lists the concrete strategies in priority order
func Methods() []Method {
	out := make([]Method, len(priority))
	copy(out, priority)
	return out
}

// Strategy translates an image by a shift vector. Implementations must
// return a new image of the same shape and must not modify the input.
type Strategy interface {
	Method() Method
	Shift(img types.Image, v types.ShiftVector) types.Image
}

// Shifter dispatches to a fixed set of strategies
type Shifter struct {
	strategies map[Method]Strategy
}

// New creates a Shifter with every strategy enabled and the default transform provider
func New() *Shifter {
	return NewWithStrategies(Capabilities(transform.Default(), FFT, Bilinear, Library)...)
}

// NewWithStrategies creates a Shifter limited to the given strategies.
// The FFT strategy is always available and is added when missing.
func NewWithStrategies(strategies ...Strategy) *Shifter {
	s := &Shifter{strategies: make(map[Method]Strategy)}
	for _, st := range strategies {
		if st == nil {
			continue
		}
		s.strategies[st.Method()] = st
	}
	if _, ok := s.strategies[FFT]; !ok {
		s.strategies[FFT] = NewFFT(transform.Default())
	}
	return s
}

// Capabilities builds the strategies named by methods. Auto is ignored. The
// FFT strategy on provider is always included, even when methods omit it.
func Capabilities(provider transform.Provider, methods ...Method) []Strategy {
	out := []Strategy{NewFFT(provider)}
	for _, m := range methods {
		switch m {
		case Bilinear:
			out = append(out, NewBilinear(WrapBilinear{}))
		case Library:
			out = append(out, NewLibrary())
		}
	}
	return out
}

// Available returns the enabled methods in priority order
func (s *Shifter) Available() []Method {
	var out []Method
	for _, m := range priority {
		if _, ok := s.strategies[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Resolve returns the method a call with the requested method would use.
// Explicit methods that are not enabled resolve to FFT.
func (s *Shifter) Resolve(method Method) Method {
	if method == Auto {
		return s.Available()[0]
	}
	if _, ok := s.strategies[method]; ok {
		return method
	}
	return FFT
}

// Shift translates img by v with the resolved strategy
func (s *Shifter) Shift(img types.Image, v types.ShiftVector, method Method) (types.Image, error) {
	if err := img.Validate(); err != nil {
		return types.Image{}, err
	}
	return s.strategies[s.Resolve(method)].Shift(img, v), nil
}

// ShiftByName is Shift with the method given by name
func (s *Shifter) ShiftByName(img types.Image, v types.ShiftVector, method string) (types.Image, error) {
	return s.Shift(img, v, ParseMethod(method))
}
