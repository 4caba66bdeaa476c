package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/graph"
)

// Tools holds what the tool handlers need. Calls are serialized.
type Tools struct {
	ctl     *editor.Controller
	persist func() error
	log     *slog.Logger
	mu      sync.Mutex
}

// --- Input types ---

type NoInput struct{}

type AgentFields struct {
	Name          *string            `json:"name,omitempty" jsonschema:"Display name"`
	Role          *string            `json:"role,omitempty" jsonschema:"Role (assistant, researcher, critic, moderator or any custom role)"`
	Model         *string            `json:"model,omitempty" jsonschema:"Model identifier"`
	Personality   map[string]float64 `json:"personality,omitempty" jsonschema:"Trait scores in [0,1] keyed by openness, conscientiousness, extraversion, agreeableness, neuroticism"`
	MemoryEnabled *bool              `json:"memory_enabled,omitempty" jsonschema:"Whether the agent keeps memory"`
	ToolsEnabled  *bool              `json:"tools_enabled,omitempty" jsonschema:"Whether the agent may call tools"`
}

type UpdateAgentInput struct {
	ID            string             `json:"id" jsonschema:"Agent id"`
	Name          *string            `json:"name,omitempty" jsonschema:"New display name"`
	Role          *string            `json:"role,omitempty" jsonschema:"New role"`
	Model         *string            `json:"model,omitempty" jsonschema:"New model identifier"`
	Personality   map[string]float64 `json:"personality,omitempty" jsonschema:"Traits to change; omitted traits keep their value"`
	MemoryEnabled *bool              `json:"memory_enabled,omitempty" jsonschema:"Whether the agent keeps memory"`
	ToolsEnabled  *bool              `json:"tools_enabled,omitempty" jsonschema:"Whether the agent may call tools"`
}

func (in UpdateAgentInput) fields() AgentFields {
	return AgentFields{
		Name:          in.Name,
		Role:          in.Role,
		Model:         in.Model,
		Personality:   in.Personality,
		MemoryEnabled: in.MemoryEnabled,
		ToolsEnabled:  in.ToolsEnabled,
	}
}

type IDInput struct {
	ID string `json:"id" jsonschema:"Agent or relation id"`
}

type ConnectInput struct {
	Source       string   `json:"source" jsonschema:"Source agent id"`
	Target       string   `json:"target" jsonschema:"Target agent id"`
	RelationType *string  `json:"relation_type,omitempty" jsonschema:"Relation type (friend, enemy, neutral, colleague, ally, rival, mentor, family, custom)"`
	Weight       *float64 `json:"weight,omitempty" jsonschema:"Weight in [-1,1]; sign is polarity"`
}

type UpdateRelationInput struct {
	ID           string   `json:"id" jsonschema:"Relation id"`
	RelationType *string  `json:"relation_type,omitempty" jsonschema:"New relation type"`
	Weight       *float64 `json:"weight,omitempty" jsonschema:"New weight in [-1,1]"`
}

type ExportInput struct {
	Format string `json:"format,omitempty" jsonschema:"json (default) or yaml"`
}

type ImportInput struct {
	Document string `json:"document" jsonschema:"A graph document as JSON or YAML text"`
}

// patch converts the fields into a store patch.
func (f AgentFields) patch() (graph.AgentPatch, error) {
	p := graph.AgentPatch{
		Name:          f.Name,
		Role:          f.Role,
		Model:         f.Model,
		MemoryEnabled: f.MemoryEnabled,
		ToolsEnabled:  f.ToolsEnabled,
	}
	if len(f.Personality) > 0 {
		p.Personality = &graph.PersonalityPatch{}
		for name, v := range f.Personality {
			if err := p.Personality.SetTrait(name, v); err != nil {
				return p, err
			}
		}
	}
	return p, p.Validate()
}

// --- Handlers ---

func (t *Tools) ReadGraph(_ context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, any, error) {
	s := t.ctl.Store()
	return toolJSON(map[string]any{
		"nodes":     s.Nodes(),
		"edges":     s.Edges(),
		"selection": s.Selection(),
		"state":     t.ctl.State(),
		"stats":     s.Stats(),
	})
}

func (t *Tools) AddAgent(_ context.Context, _ *mcp.CallToolRequest, in AgentFields) (*mcp.CallToolResult, any, error) {
	patch, err := in.patch()
	if err != nil {
		return toolError("Invalid agent: %v", err), nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	node := t.ctl.AddAgent()
	if !patch.Empty() {
		if _, err := t.ctl.Store().UpdateNodeData(node.ID, patch); err != nil {
			return toolError("Failed to update agent: %v", err), nil, nil
		}
		node, _ = t.ctl.Store().Node(node.ID)
	}
	t.save()
	return toolJSON(node)
}

func (t *Tools) UpdateAgent(_ context.Context, _ *mcp.CallToolRequest, in UpdateAgentInput) (*mcp.CallToolResult, any, error) {
	patch, err := in.fields().patch()
	if err != nil {
		return toolError("Invalid agent: %v", err), nil, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, err := t.ctl.Store().UpdateNodeData(in.ID, patch)
	if err != nil {
		return toolError("Failed to update agent: %v", err), nil, nil
	}
	if !ok {
		return toolError("Agent %q not found", in.ID), nil, nil
	}
	t.save()
	node, _ := t.ctl.Store().Node(in.ID)
	return toolJSON(node)
}

func (t *Tools) RemoveAgent(_ context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ctl.Store().RemoveNode(in.ID) {
		return toolError("Agent %q not found", in.ID), nil, nil
	}
	t.save()
	return toolText(fmt.Sprintf("Removed agent %s and its relations", in.ID)), nil, nil
}

func (t *Tools) ConnectAgents(_ context.Context, _ *mcp.CallToolRequest, in ConnectInput) (*mcp.CallToolResult, any, error) {
	var patch *graph.RelationPatch
	if in.RelationType != nil || in.Weight != nil {
		patch = &graph.RelationPatch{RelationType: in.RelationType, Weight: in.Weight}
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	edge, err := t.ctl.Connect(in.Source, in.Target, patch)
	if err != nil {
		return toolError("Failed to connect agents: %v", err), nil, nil
	}
	t.save()
	return toolJSON(edge)
}

func (t *Tools) UpdateRelation(_ context.Context, _ *mcp.CallToolRequest, in UpdateRelationInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, err := t.ctl.Store().UpdateEdgeData(in.ID, graph.RelationPatch{RelationType: in.RelationType, Weight: in.Weight})
	if err != nil {
		return toolError("Failed to update relation: %v", err), nil, nil
	}
	if !ok {
		return toolError("Relation %q not found", in.ID), nil, nil
	}
	t.save()
	edge, _ := t.ctl.Store().Edge(in.ID)
	return toolJSON(edge)
}

func (t *Tools) RemoveRelation(_ context.Context, _ *mcp.CallToolRequest, in IDInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ctl.Store().RemoveEdge(in.ID) {
		return toolError("Relation %q not found", in.ID), nil, nil
	}
	t.save()
	return toolText(fmt.Sprintf("Removed relation %s", in.ID)), nil, nil
}

func (t *Tools) ExportDocument(ctx context.Context, _ *mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var buf bytes.Buffer
	if _, err := t.ctl.Export(ctx, &buf, editor.Format(strings.ToLower(in.Format))); err != nil {
		return toolError("Export failed: %v", err), nil, nil
	}
	t.save()
	return toolText(buf.String()), nil, nil
}

func (t *Tools) ImportDocument(ctx context.Context, _ *mcp.CallToolRequest, in ImportInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, err := t.ctl.Import(ctx, strings.NewReader(in.Document))
	if err != nil {
		return toolError("Import failed: %v", err), nil, nil
	}
	t.save()
	return toolText(fmt.Sprintf("Imported %d agents and %d relations", len(doc.Agents), len(t.ctl.Store().Edges()))), nil, nil
}

func (t *Tools) SaveDocument(ctx context.Context, _ *mcp.CallToolRequest, _ NoInput) (*mcp.CallToolResult, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, err := t.ctl.Save(ctx)
	if err != nil {
		return toolError("Save failed: %v", err), nil, nil
	}
	t.save()
	return toolText(fmt.Sprintf("Saved %d agents and %d relations as %s", len(doc.Agents), len(doc.Relations), t.ctl.ConfigName())), nil, nil
}

// save persists the workspace; a failure is logged, not returned, since the
// in-memory edit already happened.
func (t *Tools) save() {
	if t.persist == nil {
		return
	}
	if err := t.persist(); err != nil {
		t.log.Warn("persist workspace", "err", err)
	}
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return toolText(string(data)), nil, nil
}
