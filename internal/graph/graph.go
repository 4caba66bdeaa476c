package graph

import (
	"errors"
	"fmt"
	"sync"
)

// Known agent roles. Any other role is accepted and round-trips unchanged.
const (
	RoleAssistant  = "assistant"
	RoleResearcher = "researcher"
	RoleCritic     = "critic"
	RoleModerator  = "moderator"

	// DefaultRole is the role carried by the agent template.
	DefaultRole = "default"
	// DefaultModel is the model identifier carried by the agent template.
	DefaultModel = "default"
)

// Known relation types. Any other type is accepted and round-trips unchanged.
const (
	RelationFriend    = "friend"
	RelationEnemy     = "enemy"
	RelationNeutral   = "neutral"
	RelationColleague = "colleague"
	RelationAlly      = "ally"
	RelationRival     = "rival"
	RelationMentor    = "mentor"
	RelationFamily    = "family"
	RelationCustom    = "custom"
)

var (
	ErrNodeNotFound  = errors.New("agent not found")
	ErrEdgeNotFound  = errors.New("relation not found")
	ErrInvalidWeight = errors.New("weight must be within [-1, 1]")
	ErrInvalidTrait  = errors.New("personality trait must be within [0, 1]")
	ErrDuplicateID   = errors.New("duplicate id")
)

// Position is the presentational canvas coordinate of an agent node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AgentData holds the simulation attributes of one agent.
type AgentData struct {
	Name          string      `json:"name"`
	Role          string      `json:"role"`
	Model         string      `json:"model"`
	Personality   Personality `json:"personality"`
	MemoryEnabled bool        `json:"memory_enabled"`
	ToolsEnabled  bool        `json:"tools_enabled"`
}

// AgentNode is a vertex of the social graph.
type AgentNode struct {
	ID       string    `json:"id"`
	Position Position  `json:"position"`
	Data     AgentData `json:"data"`
}

// RelationData holds the attributes of a directed relationship.
// Weight sign is polarity (negative is hostile), magnitude is intensity.
type RelationData struct {
	RelationType string  `json:"relation_type"`
	Weight       float64 `json:"weight"`
}

// RelationEdge is a directed edge between two agent nodes.
type RelationEdge struct {
	ID     string       `json:"id"`
	Source string       `json:"source"`
	Target string       `json:"target"`
	Data   RelationData `json:"data"`
}

// Selection references at most one node or one edge, never both.
type Selection struct {
	NodeID string `json:"node_id,omitempty"`
	EdgeID string `json:"edge_id,omitempty"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.NodeID == "" && s.EdgeID == ""
}

// DefaultAgentData returns a fresh copy of the agent template.
func DefaultAgentData(name string) AgentData {
	return AgentData{
		Name:          name,
		Role:          DefaultRole,
		Model:         DefaultModel,
		Personality:   DefaultPersonality(),
		MemoryEnabled: true,
		ToolsEnabled:  true,
	}
}

// DefaultRelationData returns a fresh copy of the relation template.
func DefaultRelationData() RelationData {
	return RelationData{RelationType: RelationNeutral, Weight: 0}
}

// PlaceholderName is the auto-numbered name given to the n-th agent.
func PlaceholderName(n int) string {
	return fmt.Sprintf("Agent %d", n)
}

// ValidWeight reports whether w is an allowed relation weight.
func ValidWeight(w float64) bool {
	return w >= -1 && w <= 1
}

// Store is the single owner of the agent/relation graph and the editor
// selection. Every mutation goes through its methods so the id uniqueness
// and no-dangling-edge invariants hold in every reachable state.
type Store struct {
	mu        sync.Mutex
	nodes     []*AgentNode
	edges     []*RelationEdge
	selection Selection
	dirty     bool
	revision  uint64
	nodeSeq   int
	edgeSeq   int
	issued    map[string]struct{}

	listeners  []listener
	listenerID int
}

type listener struct {
	id int
	fn func(Change)
}

// New creates an empty, clean store.
func New() *Store {
	return &Store{issued: make(map[string]struct{})}
}

// ─── Notification ───

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	NodeAdded        ChangeKind = "node_added"
	NodeUpdated      ChangeKind = "node_updated"
	NodeRemoved      ChangeKind = "node_removed"
	EdgeAdded        ChangeKind = "edge_added"
	EdgeUpdated      ChangeKind = "edge_updated"
	EdgeRemoved      ChangeKind = "edge_removed"
	SelectionChanged ChangeKind = "selection_changed"
	Cleared          ChangeKind = "cleared"
	Replaced         ChangeKind = "replaced"
	MarkedClean      ChangeKind = "marked_clean"
)

// Change describes one completed mutation. Dirty is the store's dirty flag
// after the change.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	ID    string     `json:"id,omitempty"`
	Dirty bool       `json:"dirty"`
}

// Subscribe registers fn to be called after every mutation. Listeners run
// outside the store lock, so they may read from the store.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	s.listenerID++
	id := s.listenerID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) emit(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(Change), len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}

// touch records a mutation. Caller holds s.mu.
func (s *Store) touch() {
	s.dirty = true
	s.revision++
}

// nextID issues an id that was never issued or loaded in this session.
// Caller holds s.mu.
func (s *Store) nextID(prefix string, seq *int) string {
	for {
		*seq++
		id := fmt.Sprintf("%s_%d", prefix, *seq)
		if _, used := s.issued[id]; !used {
			s.issued[id] = struct{}{}
			return id
		}
	}
}

func (s *Store) nodeIndex(id string) int {
	for i, n := range s.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) edgeIndex(id string) int {
	for i, e := range s.edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// ─── Nodes ───

// AddAgentNode creates an agent from the default template at pos.
func (s *Store) AddAgentNode(pos Position) AgentNode {
	s.mu.Lock()
	node := &AgentNode{
		ID:       s.nextID("agent", &s.nodeSeq),
		Position: pos,
		Data:     DefaultAgentData(PlaceholderName(len(s.nodes) + 1)),
	}
	s.nodes = append(s.nodes, node)
	s.touch()
	out := *node
	s.mu.Unlock()

	s.emit([]Change{{Kind: NodeAdded, ID: out.ID, Dirty: true}})
	return out
}

// UpdateNodeData merges patch into the agent's data. It returns false
// without error when id is unknown.
func (s *Store) UpdateNodeData(id string, patch AgentPatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	patch.Apply(&s.nodes[i].Data)
	s.touch()
	s.mu.Unlock()

	s.emit([]Change{{Kind: NodeUpdated, ID: id, Dirty: true}})
	return true, nil
}

// MoveNode sets the canvas position of an agent. Position is presentational
// but still counts as an unsaved edit of the session.
func (s *Store) MoveNode(id string, pos Position) bool {
	s.mu.Lock()
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.nodes[i].Position = pos
	s.touch()
	s.mu.Unlock()

	s.emit([]Change{{Kind: NodeUpdated, ID: id, Dirty: true}})
	return true
}

// RemoveNode deletes an agent and, in the same operation, every relation
// that starts or ends at it.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	i := s.nodeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)

	changes := []Change{{Kind: NodeRemoved, ID: id, Dirty: true}}
	kept := make([]*RelationEdge, 0, len(s.edges))
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			changes = append(changes, Change{Kind: EdgeRemoved, ID: e.ID, Dirty: true})
			if s.selection.EdgeID == e.ID {
				s.selection = Selection{}
			}
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	if s.selection.NodeID == id {
		s.selection = Selection{}
	}
	s.touch()
	s.mu.Unlock()

	s.emit(changes)
	return true
}

// ─── Edges ───

// AddRelationEdge connects source to target. Both ends must be live agents.
// A nil patch uses the relation template (neutral, weight 0).
func (s *Store) AddRelationEdge(source, target string, patch *RelationPatch) (RelationEdge, error) {
	data := DefaultRelationData()
	if patch != nil {
		if err := patch.Validate(); err != nil {
			return RelationEdge{}, err
		}
		patch.Apply(&data)
	}

	s.mu.Lock()
	if s.nodeIndex(source) < 0 {
		s.mu.Unlock()
		return RelationEdge{}, fmt.Errorf("%w: source %q", ErrNodeNotFound, source)
	}
	if s.nodeIndex(target) < 0 {
		s.mu.Unlock()
		return RelationEdge{}, fmt.Errorf("%w: target %q", ErrNodeNotFound, target)
	}

	edge := &RelationEdge{
		ID:     s.nextID("edge", &s.edgeSeq),
		Source: source,
		Target: target,
		Data:   data,
	}
	s.edges = append(s.edges, edge)
	s.touch()
	out := *edge
	s.mu.Unlock()

	s.emit([]Change{{Kind: EdgeAdded, ID: out.ID, Dirty: true}})
	return out, nil
}

// UpdateEdgeData merges patch into the relation's data. It returns false
// without error when id is unknown.
func (s *Store) UpdateEdgeData(id string, patch RelationPatch) (bool, error) {
	if err := patch.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	i := s.edgeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false, nil
	}
	patch.Apply(&s.edges[i].Data)
	s.touch()
	s.mu.Unlock()

	s.emit([]Change{{Kind: EdgeUpdated, ID: id, Dirty: true}})
	return true, nil
}

// RemoveEdge deletes a single relation.
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()
	i := s.edgeIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.edges = append(s.edges[:i], s.edges[i+1:]...)
	if s.selection.EdgeID == id {
		s.selection = Selection{}
	}
	s.touch()
	s.mu.Unlock()

	s.emit([]Change{{Kind: EdgeRemoved, ID: id, Dirty: true}})
	return true
}

// ─── Selection ───

// SelectNode selects a live agent and drops any edge selection.
func (s *Store) SelectNode(id string) bool {
	s.mu.Lock()
	if s.nodeIndex(id) < 0 {
		s.mu.Unlock()
		return false
	}
	s.selection = Selection{NodeID: id}
	dirty := s.dirty
	s.mu.Unlock()

	s.emit([]Change{{Kind: SelectionChanged, ID: id, Dirty: dirty}})
	return true
}

// SelectEdge selects a live relation and drops any node selection.
func (s *Store) SelectEdge(id string) bool {
	s.mu.Lock()
	if s.edgeIndex(id) < 0 {
		s.mu.Unlock()
		return false
	}
	s.selection = Selection{EdgeID: id}
	dirty := s.dirty
	s.mu.Unlock()

	s.emit([]Change{{Kind: SelectionChanged, ID: id, Dirty: dirty}})
	return true
}

// ClearSelection drops both selection references.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selection = Selection{}
	dirty := s.dirty
	s.mu.Unlock()

	s.emit([]Change{{Kind: SelectionChanged, Dirty: dirty}})
}

// Selection returns the current selection.
func (s *Store) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// ─── Lifecycle ───

// ClearAll empties the graph and the selection and leaves the store clean.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.nodes = nil
	s.edges = nil
	s.selection = Selection{}
	s.dirty = false
	s.revision++
	s.mu.Unlock()

	s.emit([]Change{{Kind: Cleared}})
}

// Replace swaps the whole graph for nodes and edges in one step and leaves
// the store clean. Nothing changes if the input breaks an invariant.
func (s *Store) Replace(nodes []AgentNode, edges []RelationEdge) error {
	if err := checkGraph(nodes, edges); err != nil {
		return err
	}

	s.mu.Lock()
	s.nodes = make([]*AgentNode, len(nodes))
	for i := range nodes {
		n := nodes[i]
		s.nodes[i] = &n
		s.issued[n.ID] = struct{}{}
	}
	s.edges = make([]*RelationEdge, len(edges))
	for i := range edges {
		e := edges[i]
		s.edges[i] = &e
		s.issued[e.ID] = struct{}{}
	}
	s.selection = Selection{}
	s.dirty = false
	s.revision++
	s.mu.Unlock()

	s.emit([]Change{{Kind: Replaced}})
	return nil
}

// IsDirty reports whether the graph has changes not yet exported, saved or
// loaded.
func (s *Store) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Revision is a counter bumped by every mutation.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// MarkClean resets the dirty flag after a successful export or save.
func (s *Store) MarkClean() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	s.emit([]Change{{Kind: MarkedClean}})
}

// MarkCleanAt resets the dirty flag only if no mutation happened since
// revision rev was observed.
func (s *Store) MarkCleanAt(rev uint64) bool {
	s.mu.Lock()
	if s.revision != rev {
		s.mu.Unlock()
		return false
	}
	s.dirty = false
	s.mu.Unlock()

	s.emit([]Change{{Kind: MarkedClean}})
	return true
}

// ─── Query ───

// Nodes returns a copy of the agents in insertion order.
func (s *Store) Nodes() []AgentNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentNode, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = *n
	}
	return out
}

// Edges returns a copy of the relations in insertion order.
func (s *Store) Edges() []RelationEdge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RelationEdge, len(s.edges))
	for i, e := range s.edges {
		out[i] = *e
	}
	return out
}

// Node looks up an agent by id.
func (s *Store) Node(id string) (AgentNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.nodeIndex(id); i >= 0 {
		return *s.nodes[i], true
	}
	return AgentNode{}, false
}

// Edge looks up a relation by id.
func (s *Store) Edge(id string) (RelationEdge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.edgeIndex(id); i >= 0 {
		return *s.edges[i], true
	}
	return RelationEdge{}, false
}

// RelationsOf returns outgoing and incoming relations for an agent.
func (s *Store) RelationsOf(id string) (outgoing, incoming []RelationEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.edges {
		if e.Source == id {
			outgoing = append(outgoing, *e)
		}
		if e.Target == id {
			incoming = append(incoming, *e)
		}
	}
	return outgoing, incoming
}

// Stats holds summary counts.
type Stats struct {
	Agents        int            `json:"agents"`
	Relations     int            `json:"relations"`
	Roles         map[string]int `json:"roles"`
	RelationTypes map[string]int `json:"relation_types"`
	Positive      int            `json:"positive"`
	Negative      int            `json:"negative"`
	SelfLoops     int            `json:"self_loops"`
}

// Stats returns summary statistics.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Agents:        len(s.nodes),
		Relations:     len(s.edges),
		Roles:         make(map[string]int),
		RelationTypes: make(map[string]int),
	}
	for _, n := range s.nodes {
		st.Roles[n.Data.Role]++
	}
	for _, e := range s.edges {
		st.RelationTypes[e.Data.RelationType]++
		if IsPositive(e.Data.Weight) {
			st.Positive++
		}
		if IsNegative(e.Data.Weight) {
			st.Negative++
		}
		if e.Source == e.Target {
			st.SelfLoops++
		}
	}
	return st
}

// IsPositive reports whether a weight counts as a friendly relationship.
func IsPositive(w float64) bool { return w > 0.2 }

// IsNegative reports whether a weight counts as a hostile relationship.
func IsNegative(w float64) bool { return w < -0.2 }

// checkGraph verifies unique ids and that every edge references a node.
func checkGraph(nodes []AgentNode, edges []RelationEdge) error {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: empty agent id", ErrDuplicateID)
		}
		if _, dup := ids[n.ID]; dup {
			return fmt.Errorf("%w: agent %q", ErrDuplicateID, n.ID)
		}
		ids[n.ID] = struct{}{}
		if err := n.Data.Personality.validate(); err != nil {
			return fmt.Errorf("agent %q: %w", n.ID, err)
		}
	}
	edgeIDs := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		if _, dup := edgeIDs[e.ID]; dup || e.ID == "" {
			return fmt.Errorf("%w: relation %q", ErrDuplicateID, e.ID)
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := ids[e.Source]; !ok {
			return fmt.Errorf("%w: relation %q source %q", ErrNodeNotFound, e.ID, e.Source)
		}
		if _, ok := ids[e.Target]; !ok {
			return fmt.Errorf("%w: relation %q target %q", ErrNodeNotFound, e.ID, e.Target)
		}
		if !ValidWeight(e.Data.Weight) {
			return fmt.Errorf("relation %q: %w", e.ID, ErrInvalidWeight)
		}
	}
	return nil
}
