package graph

import (
	"fmt"
	"sort"
)

// State is the full editor session: graph, selection, dirty flag and the id
// bookkeeping that keeps ids from being reused.
type State struct {
	Nodes     []AgentNode    `json:"nodes"`
	Edges     []RelationEdge `json:"edges"`
	Selection Selection      `json:"selection"`
	Dirty     bool           `json:"dirty"`
	NodeSeq   int            `json:"node_seq"`
	EdgeSeq   int            `json:"edge_seq"`
	Issued    []string       `json:"issued,omitempty"`
}

// Snapshot captures the session state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Nodes:     make([]AgentNode, len(s.nodes)),
		Edges:     make([]RelationEdge, len(s.edges)),
		Selection: s.selection,
		Dirty:     s.dirty,
		NodeSeq:   s.nodeSeq,
		EdgeSeq:   s.edgeSeq,
	}
	for i, n := range s.nodes {
		st.Nodes[i] = *n
	}
	for i, e := range s.edges {
		st.Edges[i] = *e
	}
	for id := range s.issued {
		st.Issued = append(st.Issued, id)
	}
	sort.Strings(st.Issued)
	return st
}

// Restore replaces the session with st. The store is left unchanged if st
// contains duplicate ids or dangling edges.
func (s *Store) Restore(st State) error {
	if err := checkGraph(st.Nodes, st.Edges); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.mu.Lock()
	s.nodes = make([]*AgentNode, len(st.Nodes))
	s.edges = make([]*RelationEdge, len(st.Edges))
	s.issued = make(map[string]struct{}, len(st.Issued)+len(st.Nodes)+len(st.Edges))
	for _, id := range st.Issued {
		s.issued[id] = struct{}{}
	}
	for i := range st.Nodes {
		n := st.Nodes[i]
		s.nodes[i] = &n
		s.issued[n.ID] = struct{}{}
	}
	for i := range st.Edges {
		e := st.Edges[i]
		s.edges[i] = &e
		s.issued[e.ID] = struct{}{}
	}
	s.nodeSeq = st.NodeSeq
	s.edgeSeq = st.EdgeSeq
	s.dirty = st.Dirty

	// A stale selection is dropped rather than rejected.
	s.selection = Selection{}
	if st.Selection.NodeID != "" && s.nodeIndex(st.Selection.NodeID) >= 0 {
		s.selection.NodeID = st.Selection.NodeID
	} else if st.Selection.EdgeID != "" && s.edgeIndex(st.Selection.EdgeID) >= 0 {
		s.selection.EdgeID = st.Selection.EdgeID
	}
	s.revision++
	s.mu.Unlock()

	s.emit([]Change{{Kind: Replaced, Dirty: st.Dirty}})
	return nil
}
