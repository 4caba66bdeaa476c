// Package codec maps the live agent graph to the flat simulation document
// and back.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentkernel/society/internal/graph"
)

// Version is the document schema version written by Serialize.
const Version = "1.0"

// TimeFormat is the generated_at layout: UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Grid layout applied to deserialized agents.
const (
	gridColumns = 4
	gridOriginX = 150
	gridOriginY = 100
	gridStepX   = 300
	gridStepY   = 250
)

var ErrInvalidDocument = errors.New("invalid graph document")

// Document is the position-free wire form of the graph.
type Document struct {
	Version     string           `json:"version" yaml:"version"`
	Agents      []AgentRecord    `json:"agents" yaml:"agents"`
	Relations   []RelationRecord `json:"relations" yaml:"relations"`
	GeneratedAt string           `json:"generated_at,omitempty" yaml:"generated_at,omitempty"`
}

// AgentRecord is a flattened agent. Absent fields take the agent defaults
// when the record is deserialized.
type AgentRecord struct {
	ID            string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name          *string            `json:"name,omitempty" yaml:"name,omitempty"`
	Role          *string            `json:"role,omitempty" yaml:"role,omitempty"`
	Model         *string            `json:"model,omitempty" yaml:"model,omitempty"`
	Personality   *PersonalityRecord `json:"personality,omitempty" yaml:"personality,omitempty"`
	MemoryEnabled *bool              `json:"memory_enabled,omitempty" yaml:"memory_enabled,omitempty"`
	ToolsEnabled  *bool              `json:"tools_enabled,omitempty" yaml:"tools_enabled,omitempty"`
}

// PersonalityRecord holds the traits present in a document.
type PersonalityRecord struct {
	Openness          *float64 `json:"openness,omitempty" yaml:"openness,omitempty"`
	Conscientiousness *float64 `json:"conscientiousness,omitempty" yaml:"conscientiousness,omitempty"`
	Extraversion      *float64 `json:"extraversion,omitempty" yaml:"extraversion,omitempty"`
	Agreeableness     *float64 `json:"agreeableness,omitempty" yaml:"agreeableness,omitempty"`
	Neuroticism       *float64 `json:"neuroticism,omitempty" yaml:"neuroticism,omitempty"`
}

// RelationRecord is a flattened relation without its edge id.
type RelationRecord struct {
	Source       string   `json:"source" yaml:"source"`
	Target       string   `json:"target" yaml:"target"`
	RelationType *string  `json:"relation_type,omitempty" yaml:"relation_type,omitempty"`
	Weight       *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

func (p *PersonalityRecord) patch() *graph.PersonalityPatch {
	if p == nil {
		return nil
	}
	return &graph.PersonalityPatch{
		Openness:          p.Openness,
		Conscientiousness: p.Conscientiousness,
		Extraversion:      p.Extraversion,
		Agreeableness:     p.Agreeableness,
		Neuroticism:       p.Neuroticism,
	}
}

func (r AgentRecord) patch() graph.AgentPatch {
	return graph.AgentPatch{
		Name:          r.Name,
		Role:          r.Role,
		Model:         r.Model,
		Personality:   r.Personality.patch(),
		MemoryEnabled: r.MemoryEnabled,
		ToolsEnabled:  r.ToolsEnabled,
	}
}

// AgentID returns the record id, or agent_<index> when the record has none.
func AgentID(r AgentRecord, index int) string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("agent_%d", index)
}

// EdgeID is the id a deserialized relation receives unless another
// relation already holds it. Build disambiguates collisions.
func EdgeID(source, target string) string {
	return "edge_" + source + "_" + target
}

// GridPosition is the canvas position of the index-th deserialized agent.
func GridPosition(index int) graph.Position {
	return graph.Position{
		X: float64(gridOriginX + (index%gridColumns)*gridStepX),
		Y: float64(gridOriginY + (index/gridColumns)*gridStepY),
	}
}

// ─── Serialize ───

// Serialize projects the store into a Document in insertion order. The store
// is only read.
func Serialize(s *graph.Store, now time.Time) Document {
	nodes := s.Nodes()
	edges := s.Edges()

	doc := Document{
		Version:     Version,
		Agents:      make([]AgentRecord, 0, len(nodes)),
		Relations:   make([]RelationRecord, 0, len(edges)),
		GeneratedAt: now.UTC().Format(TimeFormat),
	}
	for _, n := range nodes {
		d := n.Data
		p := d.Personality
		doc.Agents = append(doc.Agents, AgentRecord{
			ID:    n.ID,
			Name:  graph.Ptr(d.Name),
			Role:  graph.Ptr(d.Role),
			Model: graph.Ptr(d.Model),
			Personality: &PersonalityRecord{
				Openness:          graph.Ptr(p.Openness),
				Conscientiousness: graph.Ptr(p.Conscientiousness),
				Extraversion:      graph.Ptr(p.Extraversion),
				Agreeableness:     graph.Ptr(p.Agreeableness),
				Neuroticism:       graph.Ptr(p.Neuroticism),
			},
			MemoryEnabled: graph.Ptr(d.MemoryEnabled),
			ToolsEnabled:  graph.Ptr(d.ToolsEnabled),
		})
	}
	for _, e := range edges {
		doc.Relations = append(doc.Relations, RelationRecord{
			Source:       e.Source,
			Target:       e.Target,
			RelationType: graph.Ptr(e.Data.RelationType),
			Weight:       graph.Ptr(e.Data.Weight),
		})
	}
	return doc
}

// ─── Deserialize ───

// Build turns a validated document into store contents: agent ids and grid
// positions are synthesized, missing attributes take the agent defaults, and
// relations sharing a source and target collapse into one edge that keeps
// the first slot and the last record's data. When EdgeID yields the same id
// for different endpoints (a→b_c and a_b→c) the later edge gets a numeric
// suffix.
func Build(doc *Document) ([]graph.AgentNode, []graph.RelationEdge) {
	nodes := make([]graph.AgentNode, 0, len(doc.Agents))
	for i, r := range doc.Agents {
		id := AgentID(r, i)
		data := graph.DefaultAgentData(graph.PlaceholderName(i + 1))
		r.patch().Apply(&data)
		nodes = append(nodes, graph.AgentNode{ID: id, Position: GridPosition(i), Data: data})
	}

	type endpoints struct{ source, target string }

	edges := make([]graph.RelationEdge, 0, len(doc.Relations))
	slot := make(map[endpoints]int, len(doc.Relations))
	used := make(map[string]bool, len(doc.Relations))
	for _, r := range doc.Relations {
		data := graph.DefaultRelationData()
		graph.RelationPatch{RelationType: r.RelationType, Weight: r.Weight}.Apply(&data)

		key := endpoints{r.Source, r.Target}
		if i, seen := slot[key]; seen {
			edges[i].Data = data
			continue
		}
		id := EdgeID(r.Source, r.Target)
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s_%d", EdgeID(r.Source, r.Target), n)
		}
		used[id] = true
		slot[key] = len(edges)
		edges = append(edges, graph.RelationEdge{ID: id, Source: r.Source, Target: r.Target, Data: data})
	}
	return nodes, edges
}

// Deserialize validates doc and replaces the store contents with it. The
// store is untouched when doc is invalid, and clean afterwards.
func Deserialize(doc *Document, s *graph.Store) error {
	if err := Validate(doc); err != nil {
		return err
	}
	nodes, edges := Build(doc)
	if err := s.Replace(nodes, edges); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// ─── Parse / Validate ───

// Parse decodes a JSON or YAML document and validates it.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidDocument)
	}

	var doc Document
	if data[0] == '{' {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to parse JSON: %v", ErrInvalidDocument, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to parse YAML: %v", ErrInvalidDocument, err)
		}
	}

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks a document against every rule Deserialize relies on.
func Validate(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: no document", ErrInvalidDocument)
	}
	if doc.Agents == nil {
		return fmt.Errorf("%w: missing agents list", ErrInvalidDocument)
	}
	if doc.Version != "" {
		major, _, _ := strings.Cut(doc.Version, ".")
		if major != "1" {
			return fmt.Errorf("%w: unsupported version %q", ErrInvalidDocument, doc.Version)
		}
	}

	ids := make(map[string]int, len(doc.Agents))
	for i, r := range doc.Agents {
		id := AgentID(r, i)
		if prev, dup := ids[id]; dup {
			return fmt.Errorf("%w: agents %d and %d share id %q", ErrInvalidDocument, prev, i, id)
		}
		ids[id] = i

		if r.Personality != nil {
			if err := validTraits(r.Personality); err != nil {
				return fmt.Errorf("%w: agent %q: %v", ErrInvalidDocument, id, err)
			}
		}
	}

	for i, r := range doc.Relations {
		if r.Source == "" || r.Target == "" {
			return fmt.Errorf("%w: relation %d: source and target are required", ErrInvalidDocument, i)
		}
		if _, ok := ids[r.Source]; !ok {
			return fmt.Errorf("%w: relation %d: unknown source %q", ErrInvalidDocument, i, r.Source)
		}
		if _, ok := ids[r.Target]; !ok {
			return fmt.Errorf("%w: relation %d: unknown target %q", ErrInvalidDocument, i, r.Target)
		}
		if r.Weight != nil && !graph.ValidWeight(*r.Weight) {
			return fmt.Errorf("%w: relation %d: weight %v outside [-1, 1]", ErrInvalidDocument, i, *r.Weight)
		}
	}
	return nil
}

func validTraits(p *PersonalityRecord) error {
	traits := map[string]*float64{
		"openness":          p.Openness,
		"conscientiousness": p.Conscientiousness,
		"extraversion":      p.Extraversion,
		"agreeableness":     p.Agreeableness,
		"neuroticism":       p.Neuroticism,
	}
	for _, name := range graph.TraitNames {
		if v := traits[name]; v != nil && !graph.ValidTrait(*v) {
			return fmt.Errorf("%s %v outside [0, 1]", name, *v)
		}
	}
	return nil
}

// ─── Encode ───

// EncodeJSON returns the pretty-printed export artifact.
func EncodeJSON(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeYAML returns the document as YAML.
func EncodeYAML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
