package codec

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkernel/society/internal/graph"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.FixedZone("CET", 3600))

func scenarioOne(t *testing.T) (*graph.Store, graph.AgentNode, graph.AgentNode) {
	t.Helper()
	s := graph.New()
	n1 := s.AddAgentNode(graph.Position{X: 0, Y: 0})
	n2 := s.AddAgentNode(graph.Position{X: 10, Y: 10})
	_, err := s.AddRelationEdge(n1.ID, n2.ID, &graph.RelationPatch{
		RelationType: graph.Ptr(graph.RelationFriend),
		Weight:       graph.Ptr(0.7),
	})
	require.NoError(t, err)
	return s, n1, n2
}

func TestSerialize(t *testing.T) {
	t.Run("two agents and a friendship", func(t *testing.T) {
		s, n1, n2 := scenarioOne(t)

		doc := Serialize(s, fixedNow)
		assert.Equal(t, Version, doc.Version)
		require.Len(t, doc.Agents, 2)
		require.Len(t, doc.Relations, 1)

		rel := doc.Relations[0]
		assert.Equal(t, n1.ID, rel.Source)
		assert.Equal(t, n2.ID, rel.Target)
		assert.Equal(t, "friend", *rel.RelationType)
		assert.Equal(t, 0.7, *rel.Weight)
	})

	t.Run("cascade removal empties relations", func(t *testing.T) {
		s, n1, _ := scenarioOne(t)
		s.RemoveNode(n1.ID)

		doc := Serialize(s, fixedNow)
		assert.Len(t, doc.Agents, 1)
		assert.Empty(t, doc.Relations)
	})

	t.Run("stamps UTC milliseconds", func(t *testing.T) {
		doc := Serialize(graph.New(), fixedNow)
		assert.Equal(t, "2025-03-14T08:26:53.589Z", doc.GeneratedAt)
	})

	t.Run("does not mutate the store", func(t *testing.T) {
		s, _, _ := scenarioOne(t)
		s.MarkClean()
		rev := s.Revision()

		Serialize(s, fixedNow)
		assert.False(t, s.IsDirty())
		assert.Equal(t, rev, s.Revision())
	})

	t.Run("empty graph encodes empty lists", func(t *testing.T) {
		data, err := EncodeJSON(Serialize(graph.New(), fixedNow))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"agents": []`)
		assert.Contains(t, string(data), `"relations": []`)
	})
}

func TestEncodeJSONDropsPositionAndEdgeID(t *testing.T) {
	s, _, _ := scenarioOne(t)
	data, err := EncodeJSON(Serialize(s, fixedNow))
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, "\n  \"version\": \"1.0\"")
	assert.NotContains(t, out, "position")
	assert.NotContains(t, out, "edge_")

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.ElementsMatch(t, []string{"version", "agents", "relations", "generated_at"}, keys(generic))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestDeserializeDefaults(t *testing.T) {
	doc, err := Parse([]byte(`{"version":"1.0","agents":[{"name":"Alice"}],"relations":[]}`))
	require.NoError(t, err)

	s := graph.New()
	s.AddAgentNode(graph.Position{})
	require.NoError(t, Deserialize(doc, s))

	nodes := s.Nodes()
	require.Len(t, nodes, 1)
	n := nodes[0]
	assert.Equal(t, "agent_0", n.ID)
	assert.Equal(t, "Alice", n.Data.Name)
	assert.Equal(t, graph.DefaultRole, n.Data.Role)
	assert.Equal(t, "default", n.Data.Model)
	assert.Equal(t, 0.5, n.Data.Personality.Openness)
	assert.True(t, n.Data.MemoryEnabled)
	assert.True(t, n.Data.ToolsEnabled)
	assert.False(t, s.IsDirty())
}

func TestDeserializeMinimalRecords(t *testing.T) {
	doc, err := Parse([]byte(`
agents:
  - id: a
  - id: b
    personality:
      openness: 0.9
relations:
  - source: a
    target: b
`))
	require.NoError(t, err)

	s := graph.New()
	require.NoError(t, Deserialize(doc, s))

	b, ok := s.Node("b")
	require.True(t, ok)
	assert.Equal(t, 0.9, b.Data.Personality.Openness)
	assert.Equal(t, 0.5, b.Data.Personality.Neuroticism)
	assert.Equal(t, "Agent 2", b.Data.Name)

	edges := s.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "edge_a_b", edges[0].ID)
	assert.Equal(t, graph.RelationNeutral, edges[0].Data.RelationType)
	assert.Equal(t, 0.0, edges[0].Data.Weight)
}

func TestDeserializeGridLayout(t *testing.T) {
	doc := &Document{Version: Version, Agents: make([]AgentRecord, 6)}
	s := graph.New()
	require.NoError(t, Deserialize(doc, s))

	nodes := s.Nodes()
	assert.Equal(t, graph.Position{X: 150, Y: 100}, nodes[0].Position)
	assert.Equal(t, graph.Position{X: 1050, Y: 100}, nodes[3].Position)
	assert.Equal(t, graph.Position{X: 150, Y: 350}, nodes[4].Position)
	assert.Equal(t, graph.Position{X: 450, Y: 350}, nodes[5].Position)
}

func TestDeserializeDuplicatePairCollapses(t *testing.T) {
	doc := &Document{
		Version: Version,
		Agents:  []AgentRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Relations: []RelationRecord{
			{Source: "a", Target: "b", Weight: graph.Ptr(0.1)},
			{Source: "b", Target: "c", Weight: graph.Ptr(0.2)},
			{Source: "a", Target: "b", Weight: graph.Ptr(-0.6)},
		},
	}
	s := graph.New()
	require.NoError(t, Deserialize(doc, s))

	edges := s.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, "edge_a_b", edges[0].ID)
	assert.Equal(t, -0.6, edges[0].Data.Weight)
	assert.Equal(t, "edge_b_c", edges[1].ID)
}

func TestDeserializeInvalidLeavesStoreUntouched(t *testing.T) {
	s, n1, _ := scenarioOne(t)
	before := s.Snapshot()

	doc := &Document{
		Version:   Version,
		Agents:    []AgentRecord{{ID: "a"}},
		Relations: []RelationRecord{{Source: "a", Target: "ghost"}},
	}
	err := Deserialize(doc, s)
	require.ErrorIs(t, err, ErrInvalidDocument)

	assert.Equal(t, before, s.Snapshot())
	_, ok := s.Node(n1.ID)
	assert.True(t, ok)
	assert.True(t, s.IsDirty())
}

func TestRoundTrip(t *testing.T) {
	s := graph.New()
	a := s.AddAgentNode(graph.Position{X: 1, Y: 2})
	b := s.AddAgentNode(graph.Position{X: 3, Y: 4})
	c := s.AddAgentNode(graph.Position{X: 5, Y: 6})
	_, err := s.UpdateNodeData(a.ID, graph.AgentPatch{
		Name:          graph.Ptr("Alice"),
		Role:          graph.Ptr("diplomat"),
		Model:         graph.Ptr("gpt-4o"),
		MemoryEnabled: graph.Ptr(false),
		Personality:   &graph.PersonalityPatch{Agreeableness: graph.Ptr(0.95)},
	})
	require.NoError(t, err)
	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, c.ID}, {c.ID, a.ID}} {
		_, err := s.AddRelationEdge(pair[0], pair[1], &graph.RelationPatch{
			RelationType: graph.Ptr("custom-bond"),
			Weight:       graph.Ptr(-0.25),
		})
		require.NoError(t, err)
	}

	for _, encode := range []func(Document) ([]byte, error){EncodeJSON, EncodeYAML} {
		data, err := encode(Serialize(s, fixedNow))
		require.NoError(t, err)

		doc, err := Parse(data)
		require.NoError(t, err)
		loaded := graph.New()
		require.NoError(t, Deserialize(doc, loaded))

		require.Len(t, loaded.Nodes(), len(s.Nodes()))
		for i, n := range s.Nodes() {
			assert.Equal(t, n.ID, loaded.Nodes()[i].ID)
			assert.Equal(t, n.Data, loaded.Nodes()[i].Data)
		}
		require.Len(t, loaded.Edges(), len(s.Edges()))
		for i, e := range s.Edges() {
			got := loaded.Edges()[i]
			assert.Equal(t, e.Source, got.Source)
			assert.Equal(t, e.Target, got.Target)
			assert.Equal(t, e.Data, got.Data)
		}
	}
}

func TestRoundTripUnderscoreIDs(t *testing.T) {
	w := func(v float64) *float64 { return &v }
	doc := &Document{
		Version: Version,
		Agents:  []AgentRecord{{ID: "a"}, {ID: "a_b"}, {ID: "b_c"}, {ID: "c"}},
		Relations: []RelationRecord{
			{Source: "a", Target: "b_c", Weight: w(0.9)},
			{Source: "a_b", Target: "c", Weight: w(-0.9)},
		},
	}
	s := graph.New()
	require.NoError(t, Deserialize(doc, s))

	edges := s.Edges()
	require.Len(t, edges, 2)
	assert.NotEqual(t, edges[0].ID, edges[1].ID)

	data, err := EncodeJSON(Serialize(s, fixedNow))
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	loaded := graph.New()
	require.NoError(t, Deserialize(again, loaded))

	got := loaded.Edges()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Source)
	assert.Equal(t, "b_c", got[0].Target)
	assert.InDelta(t, 0.9, got[0].Data.Weight, 1e-9)
	assert.Equal(t, "a_b", got[1].Source)
	assert.Equal(t, "c", got[1].Target)
	assert.InDelta(t, -0.9, got[1].Data.Weight, 1e-9)
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", "   \n"},
		{"bad json", `{"agents": [`},
		{"bad yaml", "agents: [unclosed"},
		{"missing agents", `{"version":"1.0","relations":[]}`},
		{"null agents", `{"agents": null}`},
		{"unsupported version", `{"version":"2.0","agents":[]}`},
		{"duplicate ids", `{"agents":[{"id":"x"},{"id":"x"}]}`},
		{"synthesized id collision", `{"agents":[{"id":"agent_1"},{}]}`},
		{"trait out of range", `{"agents":[{"personality":{"openness":1.2}}]}`},
		{"weight out of range", `{"agents":[{"id":"a"}],"relations":[{"source":"a","target":"a","weight":-1.5}]}`},
		{"missing endpoint", `{"agents":[{"id":"a"}],"relations":[{"source":"a"}]}`},
		{"unknown endpoint", `{"agents":[{"id":"a"}],"relations":[{"source":"a","target":"b"}]}`},
		{"yaml scalar", "just a string"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestParseAcceptsMissingVersionAndRelations(t *testing.T) {
	doc, err := Parse([]byte(`{"agents":[{"id":"solo"}]}`))
	require.NoError(t, err)
	assert.Len(t, doc.Agents, 1)
	assert.Empty(t, doc.Relations)
}

func TestEncodeYAML(t *testing.T) {
	s, _, _ := scenarioOne(t)
	data, err := EncodeYAML(Serialize(s, fixedNow))
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "version: \"1.0\"")
	assert.Contains(t, out, "relation_type: friend")
	assert.Contains(t, out, "weight: 0.7")
}
