package graph

import (
	"fmt"
	"strings"
)

// DefaultTrait is the value a missing personality trait reads as.
const DefaultTrait = 0.5

// TraitNames lists the personality keys in canonical order.
var TraitNames = []string{
	"openness",
	"conscientiousness",
	"extraversion",
	"agreeableness",
	"neuroticism",
}

// Personality holds the five fixed trait scores, each within [0, 1].
type Personality struct {
	Openness          float64 `json:"openness" yaml:"openness"`
	Conscientiousness float64 `json:"conscientiousness" yaml:"conscientiousness"`
	Extraversion      float64 `json:"extraversion" yaml:"extraversion"`
	Agreeableness     float64 `json:"agreeableness" yaml:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism" yaml:"neuroticism"`
}

// DefaultPersonality returns every trait at DefaultTrait.
func DefaultPersonality() Personality {
	return Personality{
		Openness:          DefaultTrait,
		Conscientiousness: DefaultTrait,
		Extraversion:      DefaultTrait,
		Agreeableness:     DefaultTrait,
		Neuroticism:       DefaultTrait,
	}
}

func (p *Personality) field(name string) *float64 {
	switch strings.ToLower(name) {
	case "openness":
		return &p.Openness
	case "conscientiousness":
		return &p.Conscientiousness
	case "extraversion":
		return &p.Extraversion
	case "agreeableness":
		return &p.Agreeableness
	case "neuroticism":
		return &p.Neuroticism
	}
	return nil
}

// Get returns a trait by name.
func (p Personality) Get(name string) (float64, bool) {
	f := p.field(name)
	if f == nil {
		return 0, false
	}
	return *f, true
}

// Set assigns a trait by name.
func (p *Personality) Set(name string, v float64) error {
	f := p.field(name)
	if f == nil {
		return fmt.Errorf("unknown personality trait %q", name)
	}
	if !ValidTrait(v) {
		return fmt.Errorf("%s=%v: %w", name, v, ErrInvalidTrait)
	}
	*f = v
	return nil
}

// Map returns the traits keyed by name.
func (p Personality) Map() map[string]float64 {
	out := make(map[string]float64, len(TraitNames))
	for _, name := range TraitNames {
		v, _ := p.Get(name)
		out[name] = v
	}
	return out
}

// ValidTrait reports whether v is an allowed trait score.
func ValidTrait(v float64) bool {
	return v >= 0 && v <= 1
}

func (p Personality) validate() error {
	for _, name := range TraitNames {
		v, _ := p.Get(name)
		if !ValidTrait(v) {
			return fmt.Errorf("%s=%v: %w", name, v, ErrInvalidTrait)
		}
	}
	return nil
}
