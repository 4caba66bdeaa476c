package graphdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/graph"
)

// Fetch reads every labelled agent and relationship back into a document.
// Agents come back ordered by id, relationships by their publish ordinal.
func (p *Publisher) Fetch(ctx context.Context) (codec.Document, error) {
	doc := codec.Document{
		Version:     codec.Version,
		Agents:      []codec.AgentRecord{},
		Relations:   []codec.RelationRecord{},
		GeneratedAt: p.now().UTC().Format(codec.TimeFormat),
	}

	nodes, err := p.runner.Run(ctx,
		fmt.Sprintf(`MATCH (n:%s) RETURN n.id AS id, properties(n) AS props ORDER BY n.id`, p.nodeLabel),
		nil)
	if err != nil {
		return doc, fmt.Errorf("fetch agents: %w", err)
	}
	for _, rec := range nodes.Records {
		id, _ := value[string](rec, "id")
		props, _ := value[map[string]any](rec, "props")
		doc.Agents = append(doc.Agents, agentRecord(id, props))
	}

	rels, err := p.runner.Run(ctx,
		fmt.Sprintf(`MATCH (a:%[1]s)-[r:%[2]s]->(b:%[1]s)
RETURN a.id AS source, b.id AS target, r.relation_type AS relation_type, r.weight AS weight
ORDER BY coalesce(r.ordinal, 0), a.id, b.id`, p.nodeLabel, p.edgeLabel),
		nil)
	if err != nil {
		return doc, fmt.Errorf("fetch relations: %w", err)
	}
	for _, rec := range rels.Records {
		source, _ := value[string](rec, "source")
		target, _ := value[string](rec, "target")
		r := codec.RelationRecord{Source: source, Target: target}
		if t, ok := value[string](rec, "relation_type"); ok {
			r.RelationType = graph.Ptr(t)
		}
		if w, ok := number(rec, "weight"); ok {
			r.Weight = graph.Ptr(w)
		}
		doc.Relations = append(doc.Relations, r)
	}

	if err := codec.Validate(&doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func agentRecord(id string, props map[string]any) codec.AgentRecord {
	r := codec.AgentRecord{ID: id}
	if v, ok := props["name"].(string); ok {
		r.Name = graph.Ptr(v)
	}
	if v, ok := props["role"].(string); ok {
		r.Role = graph.Ptr(v)
	}
	if v, ok := props["model"].(string); ok {
		r.Model = graph.Ptr(v)
	}
	if v, ok := props["memory_enabled"].(bool); ok {
		r.MemoryEnabled = graph.Ptr(v)
	}
	if v, ok := props["tools_enabled"].(bool); ok {
		r.ToolsEnabled = graph.Ptr(v)
	}

	var pers codec.PersonalityRecord
	found := false
	for key, raw := range props {
		name, ok := strings.CutPrefix(key, personalityPrefix)
		if !ok {
			continue
		}
		v, ok := toFloat(raw)
		if !ok {
			continue
		}
		switch name {
		case "openness":
			pers.Openness = graph.Ptr(v)
		case "conscientiousness":
			pers.Conscientiousness = graph.Ptr(v)
		case "extraversion":
			pers.Extraversion = graph.Ptr(v)
		case "agreeableness":
			pers.Agreeableness = graph.Ptr(v)
		case "neuroticism":
			pers.Neuroticism = graph.Ptr(v)
		default:
			continue
		}
		found = true
	}
	if found {
		r.Personality = &pers
	}
	return r
}

func value[T any](rec *neo4j.Record, key string) (T, bool) {
	var zero T
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

func number(rec *neo4j.Record, key string) (float64, bool) {
	raw, ok := rec.Get(key)
	if !ok {
		return 0, false
	}
	return toFloat(raw)
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func firstInt(res *neo4j.EagerResult, key string) int64 {
	if res == nil || len(res.Records) == 0 {
		return 0
	}
	raw, _ := res.Records[0].Get(key)
	n, _ := raw.(int64)
	return n
}
