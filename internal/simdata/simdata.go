// Package simdata compiles a graph document into the data files and the
// simulation_config.yaml read by the simulation engine.
package simdata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/graph"
)

// Paths of the generated files, relative to the output directory. They match
// the data section of the default simulation config.
const (
	ProfilesPath = "data/agent/profiles.jsonl"
	NodesPath    = "data/relationship/nodes.jsonl"
	EdgesPath    = "data/relationship/edges.jsonl"
	ConfigPath   = "configs/simulation_config.yaml"
)

// Profile is one line of profiles.jsonl.
type Profile struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Role          string            `json:"role"`
	Model         string            `json:"model"`
	Personality   graph.Personality `json:"personality"`
	MemoryEnabled bool              `json:"memory_enabled"`
	ToolsEnabled  bool              `json:"tools_enabled"`
}

// Node is one line of nodes.jsonl.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	NodeType   string         `json:"node_type"`
	Properties map[string]any `json:"properties"`
}

// Edge is one line of edges.jsonl. Editor relations are directed, so
// Bidirectional is always false.
type Edge struct {
	SourceID      string         `json:"source_id"`
	TargetID      string         `json:"target_id"`
	RelationType  string         `json:"relation_type"`
	Weight        float64        `json:"weight"`
	Bidirectional bool           `json:"bidirectional"`
	Properties    map[string]any `json:"properties"`
}

// SimulationConfig is the engine's top-level simulation_config.yaml.
type SimulationConfig struct {
	Simulation struct {
		PodSize       int `yaml:"pod_size"`
		InitBatchSize int `yaml:"init_batch_size"`
		MaxTicks      int `yaml:"max_ticks"`
	} `yaml:"simulation"`
	Configs struct {
		Environment    string `yaml:"environment"`
		Actions        string `yaml:"actions"`
		AgentTemplates string `yaml:"agent_templates"`
		System         string `yaml:"system"`
		Database       string `yaml:"database"`
		Models         string `yaml:"models"`
	} `yaml:"configs"`
	Data struct {
		AgentProfiles     string `yaml:"agent_profiles"`
		AgentStates       string `yaml:"agent_states"`
		RelationshipNodes string `yaml:"relationship_nodes"`
		RelationshipEdges string `yaml:"relationship_edges"`
		MapObjects        string `yaml:"map_objects"`
		MapAgents         string `yaml:"map_agents"`
	} `yaml:"data"`
	APIServer struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"api_server"`
}

// DefaultSimulationConfig returns the panel's default simulation config.
func DefaultSimulationConfig() SimulationConfig {
	var c SimulationConfig
	c.Simulation.PodSize = 10
	c.Simulation.InitBatchSize = 5
	c.Simulation.MaxTicks = 100

	c.Configs.Environment = "environment_config.yaml"
	c.Configs.Actions = "actions_config.yaml"
	c.Configs.AgentTemplates = "agents_config.yaml"
	c.Configs.System = "system_config.yaml"
	c.Configs.Database = "db_config.yaml"
	c.Configs.Models = "models_config.yaml"

	c.Data.AgentProfiles = ProfilesPath
	c.Data.AgentStates = "data/agent/states.jsonl"
	c.Data.RelationshipNodes = NodesPath
	c.Data.RelationshipEdges = EdgesPath
	c.Data.MapObjects = "data/map/objects.jsonl"
	c.Data.MapAgents = "data/map/agents.jsonl"

	c.APIServer.Host = "0.0.0.0"
	c.APIServer.Port = 8000
	return c
}

// Bundle is a compiled document.
type Bundle struct {
	Profiles []Profile
	Nodes    []Node
	Edges    []Edge
	Config   SimulationConfig
}

// Compile validates doc and resolves it the same way import does: ids and
// defaults are filled and duplicate source/target pairs collapse.
func Compile(doc codec.Document) (Bundle, error) {
	if err := codec.Validate(&doc); err != nil {
		return Bundle{}, err
	}
	nodes, edges := codec.Build(&doc)

	b := Bundle{
		Profiles: make([]Profile, 0, len(nodes)),
		Nodes:    make([]Node, 0, len(nodes)),
		Edges:    make([]Edge, 0, len(edges)),
		Config:   DefaultSimulationConfig(),
	}
	for _, n := range nodes {
		d := n.Data
		b.Profiles = append(b.Profiles, Profile{
			ID:            n.ID,
			Name:          d.Name,
			Role:          d.Role,
			Model:         d.Model,
			Personality:   d.Personality,
			MemoryEnabled: d.MemoryEnabled,
			ToolsEnabled:  d.ToolsEnabled,
		})
		props := map[string]any{"role": d.Role, "model": d.Model}
		for name, v := range d.Personality.Map() {
			props[name] = v
		}
		b.Nodes = append(b.Nodes, Node{ID: n.ID, Label: d.Name, NodeType: "agent", Properties: props})
	}
	for _, e := range edges {
		b.Edges = append(b.Edges, Edge{
			SourceID:     e.Source,
			TargetID:     e.Target,
			RelationType: e.Data.RelationType,
			Weight:       e.Data.Weight,
			Properties: map[string]any{
				"summary": Summarize(e.Source, e.Target, e.Data),
			},
		})
	}
	return b, nil
}

// Written lists the files Write produced, relative to its directory.
type Written struct {
	Files     []string
	Agents    int
	Relations int
}

// Write compiles doc and writes the four files under dir concurrently.
func Write(ctx context.Context, dir string, doc codec.Document) (Written, error) {
	b, err := Compile(doc)
	if err != nil {
		return Written{}, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writeLines(ctx, filepath.Join(dir, ProfilesPath), b.Profiles) })
	g.Go(func() error { return writeLines(ctx, filepath.Join(dir, NodesPath), b.Nodes) })
	g.Go(func() error { return writeLines(ctx, filepath.Join(dir, EdgesPath), b.Edges) })
	g.Go(func() error {
		data, err := yaml.Marshal(b.Config)
		if err != nil {
			return fmt.Errorf("encode simulation config: %w", err)
		}
		return writeFile(filepath.Join(dir, ConfigPath), data)
	})
	if err := g.Wait(); err != nil {
		return Written{}, err
	}
	return Written{
		Files:     []string{ProfilesPath, NodesPath, EdgesPath, ConfigPath},
		Agents:    len(b.Profiles),
		Relations: len(b.Edges),
	}, nil
}

func writeLines[T any](ctx context.Context, path string, items []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Strength buckets |w|: strong above 0.6, moderate above 0.3, weak otherwise.
func Strength(w float64) string {
	switch a := math.Abs(w); {
	case a > 0.6:
		return "strong"
	case a > 0.3:
		return "moderate"
	}
	return "weak"
}

// Sentiment names the sign of w.
func Sentiment(w float64) string {
	switch {
	case w > 0:
		return "positive"
	case w < 0:
		return "negative"
	}
	return "neutral"
}

// Summarize renders one relation as a sentence.
func Summarize(source, target string, d graph.RelationData) string {
	return fmt.Sprintf("%s has a %s %s %s relationship with %s",
		source, Strength(d.Weight), Sentiment(d.Weight), d.RelationType, target)
}
