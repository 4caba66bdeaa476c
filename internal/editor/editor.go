// Package editor binds user gestures to graph mutations and runs the codec
// at the export, save and import boundaries.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/graph"
)

var (
	ErrNotConfirmed = errors.New("clear all not confirmed")
	ErrSaveFailed   = errors.New("save failed")
	ErrImportFailed = errors.New("import failed")
	ErrBadFormat    = errors.New("unsupported export format")
)

// ConfigSaver persists a document under a config name.
type ConfigSaver interface {
	SaveConfig(ctx context.Context, name string, doc any) error
}

// Confirmer asks the user to approve an irreversible action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Recorder receives every document that crossed an I/O boundary.
type Recorder interface {
	Record(ctx context.Context, action string, doc codec.Document) error
}

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// SessionState is Clean or Dirty.
type SessionState string

const (
	Clean SessionState = "clean"
	Dirty SessionState = "dirty"
)

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	ConfigName string
	Center     graph.Position
	Spread     float64
	Saver      ConfigSaver
	Confirm    Confirmer
	Recorder   Recorder
	Rand       *rand.Rand
	Now        func() time.Time
	Logger     *slog.Logger
}

const (
	DefaultConfigName = "agent_graph"
	DefaultSpread     = 200
)

// Controller translates gestures into store calls. It keeps no graph state
// of its own.
type Controller struct {
	store *graph.Store
	opts  Options
}

// New wraps store with a controller.
func New(store *graph.Store, opts Options) *Controller {
	if opts.ConfigName == "" {
		opts.ConfigName = DefaultConfigName
	}
	if opts.Spread <= 0 {
		opts.Spread = DefaultSpread
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x50c1e7))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{store: store, opts: opts}
}

// Store returns the controlled graph store.
func (c *Controller) Store() *graph.Store { return c.store }

// ConfigName is the name Save writes under.
func (c *Controller) ConfigName() string { return c.opts.ConfigName }

// State reports the session state.
func (c *Controller) State() SessionState {
	if c.store.IsDirty() {
		return Dirty
	}
	return Clean
}

// ─── Gestures ───

// Connect creates a relation from source to target.
func (c *Controller) Connect(source, target string, patch *graph.RelationPatch) (graph.RelationEdge, error) {
	return c.store.AddRelationEdge(source, target, patch)
}

// ClickNode selects an agent.
func (c *Controller) ClickNode(id string) bool { return c.store.SelectNode(id) }

// ClickEdge selects a relation.
func (c *Controller) ClickEdge(id string) bool { return c.store.SelectEdge(id) }

// ClickCanvas drops the selection.
func (c *Controller) ClickCanvas() { c.store.ClearSelection() }

// AddAgent places a new agent at a random spot inside a square of side
// Spread centred on the viewport centre.
func (c *Controller) AddAgent() graph.AgentNode {
	half := c.opts.Spread / 2
	pos := graph.Position{
		X: c.opts.Center.X - half + c.opts.Rand.Float64()*c.opts.Spread,
		Y: c.opts.Center.Y - half + c.opts.Rand.Float64()*c.opts.Spread,
	}
	return c.store.AddAgentNode(pos)
}

// Deleted reports what Delete removed.
type Deleted struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Delete removes the selected agent, else the selected relation. It returns
// false when nothing was selected.
func (c *Controller) Delete() (Deleted, bool) {
	sel := c.store.Selection()
	switch {
	case sel.NodeID != "":
		if c.store.RemoveNode(sel.NodeID) {
			return Deleted{Kind: "agent", ID: sel.NodeID}, true
		}
	case sel.EdgeID != "":
		if c.store.RemoveEdge(sel.EdgeID) {
			return Deleted{Kind: "relation", ID: sel.EdgeID}, true
		}
	}
	return Deleted{}, false
}

// ClearAll empties the graph once the configured confirmer approves.
func (c *Controller) ClearAll() error {
	return c.ClearAllWith(c.opts.Confirm)
}

// ClearAllWith is ClearAll with a per-call confirmer. A nil confirmer never
// approves.
func (c *Controller) ClearAllWith(confirm Confirmer) error {
	st := c.store.Stats()
	prompt := fmt.Sprintf("Remove all %d agents and %d relations?", st.Agents, st.Relations)
	if confirm == nil || !confirm.Confirm(prompt) {
		return ErrNotConfirmed
	}
	c.store.ClearAll()
	return nil
}

// ─── I/O boundaries ───

// Document serializes the current graph without touching the dirty flag.
func (c *Controller) Document() codec.Document {
	return codec.Serialize(c.store, c.opts.Now())
}

// Export writes the document to w and marks the session clean.
func (c *Controller) Export(ctx context.Context, w io.Writer, format Format) (codec.Document, error) {
	rev := c.store.Revision()
	doc := c.Document()

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON, "":
		data, err = codec.EncodeJSON(doc)
	case FormatYAML:
		data, err = codec.EncodeYAML(doc)
	default:
		return doc, fmt.Errorf("%w: %q", ErrBadFormat, format)
	}
	if err != nil {
		return doc, fmt.Errorf("encode document: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return doc, fmt.Errorf("write document: %w", err)
	}

	c.store.MarkCleanAt(rev)
	c.record(ctx, "export", doc)
	return doc, nil
}

// Save hands the document to the config saver. On success the session is
// marked clean unless it changed while the request was in flight; on
// failure it stays dirty.
func (c *Controller) Save(ctx context.Context) (codec.Document, error) {
	rev := c.store.Revision()
	doc := c.Document()

	if c.opts.Saver == nil {
		return doc, fmt.Errorf("%w: no config store configured", ErrSaveFailed)
	}
	if err := c.opts.Saver.SaveConfig(ctx, c.opts.ConfigName, doc); err != nil {
		return doc, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if !c.store.MarkCleanAt(rev) {
		c.opts.Logger.Info("graph changed during save, staying dirty",
			"config", c.opts.ConfigName, "revision", rev)
	}
	c.record(ctx, "save", doc)
	return doc, nil
}

// Import reads a JSON or YAML document from r and replaces the graph with
// it. Any failure leaves the graph untouched.
func (c *Controller) Import(ctx context.Context, r io.Reader) (codec.Document, error) {
	if err := ctx.Err(); err != nil {
		return codec.Document{}, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return codec.Document{}, fmt.Errorf("%w: read: %w", ErrImportFailed, err)
	}
	doc, err := codec.Parse(data)
	if err != nil {
		return codec.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return codec.Document{}, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	if err := codec.Deserialize(doc, c.store); err != nil {
		return codec.Document{}, err
	}
	c.record(ctx, "import", *doc)
	return *doc, nil
}

func (c *Controller) record(ctx context.Context, action string, doc codec.Document) {
	if c.opts.Recorder == nil {
		return
	}
	if err := c.opts.Recorder.Record(ctx, action, doc); err != nil {
		c.opts.Logger.Warn("record snapshot", "action", action, "err", err)
	}
}
