package graph

import (
	"fmt"
	"strings"
)

// AgentPatch is a partial update of AgentData. Nil fields are left alone.
type AgentPatch struct {
	Name          *string           `json:"name,omitempty"`
	Role          *string           `json:"role,omitempty"`
	Model         *string           `json:"model,omitempty"`
	Personality   *PersonalityPatch `json:"personality,omitempty"`
	MemoryEnabled *bool             `json:"memory_enabled,omitempty"`
	ToolsEnabled  *bool             `json:"tools_enabled,omitempty"`
}

// PersonalityPatch updates individual traits and keeps the rest.
type PersonalityPatch struct {
	Openness          *float64 `json:"openness,omitempty"`
	Conscientiousness *float64 `json:"conscientiousness,omitempty"`
	Extraversion      *float64 `json:"extraversion,omitempty"`
	Agreeableness     *float64 `json:"agreeableness,omitempty"`
	Neuroticism       *float64 `json:"neuroticism,omitempty"`
}

// RelationPatch is a partial update of RelationData.
type RelationPatch struct {
	RelationType *string  `json:"relation_type,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T { return &v }

// Empty reports whether the patch changes nothing.
func (p AgentPatch) Empty() bool {
	return p.Name == nil && p.Role == nil && p.Model == nil && p.Personality == nil &&
		p.MemoryEnabled == nil && p.ToolsEnabled == nil
}

// Apply assigns every present field onto d.
func (p AgentPatch) Apply(d *AgentData) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Role != nil {
		d.Role = *p.Role
	}
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.Personality != nil {
		p.Personality.Apply(&d.Personality)
	}
	if p.MemoryEnabled != nil {
		d.MemoryEnabled = *p.MemoryEnabled
	}
	if p.ToolsEnabled != nil {
		d.ToolsEnabled = *p.ToolsEnabled
	}
}

// Validate checks trait ranges without applying anything.
func (p AgentPatch) Validate() error {
	if p.Personality != nil {
		return p.Personality.validate()
	}
	return nil
}

// Apply assigns every present trait onto pers.
func (p PersonalityPatch) Apply(pers *Personality) {
	for _, f := range p.fields(pers) {
		if f.val != nil {
			*f.dst = *f.val
		}
	}
}

// SetTrait records a trait by name.
func (p *PersonalityPatch) SetTrait(name string, v float64) error {
	switch strings.ToLower(name) {
	case "openness":
		p.Openness = Ptr(v)
	case "conscientiousness":
		p.Conscientiousness = Ptr(v)
	case "extraversion":
		p.Extraversion = Ptr(v)
	case "agreeableness":
		p.Agreeableness = Ptr(v)
	case "neuroticism":
		p.Neuroticism = Ptr(v)
	default:
		return fmt.Errorf("unknown personality trait %q", name)
	}
	return nil
}

type traitField struct {
	name string
	val  *float64
	dst  *float64
}

func (p PersonalityPatch) fields(pers *Personality) []traitField {
	return []traitField{
		{"openness", p.Openness, &pers.Openness},
		{"conscientiousness", p.Conscientiousness, &pers.Conscientiousness},
		{"extraversion", p.Extraversion, &pers.Extraversion},
		{"agreeableness", p.Agreeableness, &pers.Agreeableness},
		{"neuroticism", p.Neuroticism, &pers.Neuroticism},
	}
}

func (p PersonalityPatch) validate() error {
	var scratch Personality
	for _, f := range p.fields(&scratch) {
		if f.val != nil && !ValidTrait(*f.val) {
			return fmt.Errorf("%s=%v: %w", f.name, *f.val, ErrInvalidTrait)
		}
	}
	return nil
}

// Apply assigns every present field onto d.
func (p RelationPatch) Apply(d *RelationData) {
	if p.RelationType != nil {
		d.RelationType = *p.RelationType
	}
	if p.Weight != nil {
		d.Weight = *p.Weight
	}
}

// Validate checks the weight range.
func (p RelationPatch) Validate() error {
	if p.Weight != nil && !ValidWeight(*p.Weight) {
		return fmt.Errorf("weight=%v: %w", *p.Weight, ErrInvalidWeight)
	}
	return nil
}
