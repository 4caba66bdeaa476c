package graphdb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/graph"
)

var ErrInvalidLabel = errors.New("invalid label")

var labelPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const personalityPrefix = "personality_"

// Publisher mirrors documents into Neo4j: agents become labelled nodes keyed
// by id, relations become typed relationships carrying relation_type and
// weight.
type Publisher struct {
	runner    Runner
	nodeLabel string
	edgeLabel string
	now       func() time.Time
}

// NewPublisher validates the labels, which are spliced into Cypher text.
func NewPublisher(runner Runner, nodeLabel, edgeLabel string) (*Publisher, error) {
	for _, l := range []string{nodeLabel, edgeLabel} {
		if !labelPattern.MatchString(l) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, l)
		}
	}
	return &Publisher{runner: runner, nodeLabel: nodeLabel, edgeLabel: edgeLabel, now: time.Now}, nil
}

// PublishOptions tunes Publish.
type PublishOptions struct {
	// Prune deletes labelled nodes whose id is not in the document.
	Prune bool
}

// PublishResult counts what was written.
type PublishResult struct {
	Agents    int `json:"agents"`
	Relations int `json:"relations"`
	Pruned    int `json:"pruned"`
}

// Publish upserts every agent, replaces the outgoing relationships of the
// published agents and creates one relationship per relation record. When
// the runner is a TxRunner all statements commit together; a plain Runner
// auto-commits each one, so a failure leaves the earlier steps applied.
func (p *Publisher) Publish(ctx context.Context, doc codec.Document, opts PublishOptions) (PublishResult, error) {
	if err := codec.Validate(&doc); err != nil {
		return PublishResult{}, err
	}
	nodes, _ := codec.Build(&doc)
	stamp := p.now().UTC().Format(codec.TimeFormat)

	ids := make([]any, 0, len(nodes))
	agents := make([]any, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
		agents = append(agents, map[string]any{"id": n.ID, "props": nodeProps(n.Data, stamp)})
	}

	// Relation records keep their multiplicity here; only Deserialize
	// collapses duplicate pairs.
	rels := make([]any, 0, len(doc.Relations))
	for i, r := range doc.Relations {
		data := graph.DefaultRelationData()
		graph.RelationPatch{RelationType: r.RelationType, Weight: r.Weight}.Apply(&data)
		rels = append(rels, map[string]any{
			"source":        r.Source,
			"target":        r.Target,
			"relation_type": data.RelationType,
			"weight":        data.Weight,
			"ordinal":       i,
		})
	}

	write := func(run Runner) (PublishResult, error) {
		var res PublishResult
		upsert := fmt.Sprintf(`UNWIND $agents AS a
MERGE (n:%s {id: a.id})
SET n += a.props`, p.nodeLabel)
		if _, err := run.Run(ctx, upsert, map[string]any{"agents": agents}); err != nil {
			return res, fmt.Errorf("upsert agents: %w", err)
		}
		res.Agents = len(agents)

		detach := fmt.Sprintf(`MATCH (a:%s)-[r:%s]->()
WHERE a.id IN $ids
DELETE r`, p.nodeLabel, p.edgeLabel)
		if _, err := run.Run(ctx, detach, map[string]any{"ids": ids}); err != nil {
			return res, fmt.Errorf("clear relations: %w", err)
		}

		if len(rels) > 0 {
			create := fmt.Sprintf(`UNWIND $relations AS rel
MATCH (a:%[1]s {id: rel.source}), (b:%[1]s {id: rel.target})
CREATE (a)-[r:%[2]s {relation_type: rel.relation_type, weight: rel.weight, ordinal: rel.ordinal, updated_at: $stamp}]->(b)`,
				p.nodeLabel, p.edgeLabel)
			if _, err := run.Run(ctx, create, map[string]any{"relations": rels, "stamp": stamp}); err != nil {
				return res, fmt.Errorf("create relations: %w", err)
			}
		}
		res.Relations = len(rels)

		if opts.Prune {
			prune := fmt.Sprintf(`MATCH (n:%s)
WHERE NOT n.id IN $ids
DETACH DELETE n
RETURN count(n) AS deleted`, p.nodeLabel)
			out, err := run.Run(ctx, prune, map[string]any{"ids": ids})
			if err != nil {
				return res, fmt.Errorf("prune agents: %w", err)
			}
			res.Pruned = int(firstInt(out, "deleted"))
		}
		return res, nil
	}

	tx, ok := p.runner.(TxRunner)
	if !ok {
		return write(p.runner)
	}
	var res PublishResult
	err := tx.WriteTx(ctx, func(run Runner) error {
		var err error
		res, err = write(run)
		return err
	})
	if err != nil {
		return PublishResult{}, err
	}
	return res, nil
}

func nodeProps(d graph.AgentData, stamp string) map[string]any {
	props := map[string]any{
		"name":           d.Name,
		"role":           d.Role,
		"model":          d.Model,
		"memory_enabled": d.MemoryEnabled,
		"tools_enabled":  d.ToolsEnabled,
		"updated_at":     stamp,
	}
	for name, v := range d.Personality.Map() {
		props[personalityPrefix+name] = v
	}
	return props
}
