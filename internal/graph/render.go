package graph

import (
	"fmt"
	"strings"
)

// ─── Export ───

// ExportDOT returns the graph in Graphviz DOT format. Nodes and edges keep
// insertion order so the output is stable between runs.
func (s *Store) ExportDOT() string {
	nodes := s.Nodes()
	edges := s.Edges()

	var b strings.Builder
	b.WriteString("digraph society {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, n := range nodes {
		label := n.Data.Name + "\\n(" + n.Data.Role + ")"
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", n.ID, label))
	}

	b.WriteString("\n")
	for _, e := range edges {
		color := "gray"
		switch {
		case IsPositive(e.Data.Weight):
			color = "darkgreen"
		case IsNegative(e.Data.Weight):
			color = "red"
		}
		label := fmt.Sprintf("%s %.2f", e.Data.RelationType, e.Data.Weight)
		b.WriteString(fmt.Sprintf("  %q -> %q [label=%q, color=%s];\n", e.Source, e.Target, label, color))
	}

	b.WriteString("}\n")
	return b.String()
}

// ─── Show ───

// ShowEdge pairs a relation with the agent at its other end.
type ShowEdge struct {
	Edge  RelationEdge `json:"edge"`
	Other AgentNode    `json:"other"`
}

// ShowResult holds an agent with its neighbourhood.
type ShowResult struct {
	Node     AgentNode  `json:"node"`
	Outgoing []ShowEdge `json:"outgoing"`
	Incoming []ShowEdge `json:"incoming"`
}

// Show returns an agent and the agents it is related to.
func (s *Store) Show(id string) (*ShowResult, error) {
	node, ok := s.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	outgoing, incoming := s.RelationsOf(id)

	result := &ShowResult{Node: node}
	for _, e := range outgoing {
		other, _ := s.Node(e.Target)
		result.Outgoing = append(result.Outgoing, ShowEdge{Edge: e, Other: other})
	}
	for _, e := range incoming {
		other, _ := s.Node(e.Source)
		result.Incoming = append(result.Incoming, ShowEdge{Edge: e, Other: other})
	}
	return result, nil
}

// RenderShow draws an agent as a terminal tree: incoming relations above,
// attributes in the middle, outgoing relations below.
func RenderShow(s *Store, id string, brandFn, subtleFn, infoFn func(string) string) (string, error) {
	result, err := s.Show(id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	relLabel := func(e RelationEdge) string {
		return fmt.Sprintf("%s %+.2f", e.Data.RelationType, e.Data.Weight)
	}

	for i, se := range result.Incoming {
		prefix := "  ├── "
		if i == len(result.Incoming)-1 && len(result.Outgoing) == 0 {
			prefix = "  └── "
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", prefix, subtleFn(relLabel(se.Edge)), subtleFn("──"), brandFn(se.Other.Data.Name)))
		b.WriteString(fmt.Sprintf("  │           %s\n", subtleFn(se.Other.ID)))
		b.WriteString("  │\n")
	}

	d := result.Node.Data
	b.WriteString(fmt.Sprintf("  ● %s %s\n", brandFn(d.Name), subtleFn("["+result.Node.ID+"]")))
	b.WriteString(fmt.Sprintf("  │  %s\n", subtleFn("role="+d.Role+"  model="+d.Model)))
	b.WriteString(fmt.Sprintf("  │  %s\n", subtleFn(fmt.Sprintf("memory=%t  tools=%t", d.MemoryEnabled, d.ToolsEnabled))))
	traits := make([]string, 0, len(TraitNames))
	for _, name := range TraitNames {
		v, _ := d.Personality.Get(name)
		traits = append(traits, fmt.Sprintf("%s=%.2f", name, v))
	}
	b.WriteString(fmt.Sprintf("  │  %s\n", infoFn(strings.Join(traits, " "))))

	if len(result.Outgoing) > 0 {
		b.WriteString("  │\n")
	}
	for i, se := range result.Outgoing {
		prefix := "  ├── "
		if i == len(result.Outgoing)-1 {
			prefix = "  └── "
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", prefix, subtleFn(relLabel(se.Edge)), subtleFn("──"), brandFn(se.Other.Data.Name)))
		b.WriteString(fmt.Sprintf("              %s\n", subtleFn(se.Other.ID)))
	}

	return b.String(), nil
}
