package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/graph"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSaver struct {
	err  error
	docs []any
}

func (s *stubSaver) SaveConfig(_ context.Context, _ string, doc any) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, doc)
	return nil
}

type fixture struct {
	srv      *Server
	store    *graph.Store
	saver    *stubSaver
	persists atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: graph.New(), saver: &stubSaver{}}
	ctl := editor.New(f.store, editor.Options{Saver: f.saver})
	f.srv = New(Options{
		Controller: ctl,
		Registry:   prometheus.NewRegistry(),
		Persist: func() error {
			f.persists.Add(1)
			return nil
		},
		Version: "test",
	})
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAgentLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/agents", `{"name":"Alice","role":"critic","personality":{"openness":0.9}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alice := decode[graph.AgentNode](t, w)
	assert.Equal(t, "Alice", alice.Data.Name)
	assert.Equal(t, 0.9, alice.Data.Personality.Openness)
	assert.Equal(t, graph.DefaultTrait, alice.Data.Personality.Neuroticism)

	w = f.do(t, http.MethodPost, "/api/agents", "")
	require.Equal(t, http.StatusCreated, w.Code)
	bob := decode[graph.AgentNode](t, w)
	assert.Equal(t, graph.PlaceholderName(2), bob.Data.Name)

	w = f.do(t, http.MethodPatch, "/api/agents/"+bob.ID, `{"model":"gpt-4o"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gpt-4o", decode[graph.AgentNode](t, w).Data.Model)

	w = f.do(t, http.MethodPut, "/api/agents/"+bob.ID+"/position", `{"x":1,"y":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, graph.Position{X: 1, Y: 2}, decode[graph.AgentNode](t, w).Position)

	w = f.do(t, http.MethodGet, "/api/agents/"+alice.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outgoing"`)

	w = f.do(t, http.MethodDelete, "/api/agents/"+alice.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.store.Nodes(), 1)
	assert.EqualValues(t, 5, f.persists.Load())
}

func TestAgentErrors(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/agents", `{"personality":{"openness":1.5}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.store.Nodes(), "invalid agent must not be created")

	w = f.do(t, http.MethodPatch, "/api/agents/ghost", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/agents", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/agents/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Zero(t, f.persists.Load(), "failed requests do not persist")
}

func TestRelations(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddAgentNode(graph.Position{})
	b := f.store.AddAgentNode(graph.Position{})

	w := f.do(t, http.MethodPost, "/api/relations", `{"source":"`+a.ID+`","target":"`+b.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	edge := decode[graph.RelationEdge](t, w)
	assert.Equal(t, graph.RelationNeutral, edge.Data.RelationType)

	w = f.do(t, http.MethodPatch, "/api/relations/"+edge.ID, `{"weight":-0.8,"relation_type":"enemy"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -0.8, decode[graph.RelationEdge](t, w).Data.Weight)

	w = f.do(t, http.MethodPatch, "/api/relations/"+edge.ID, `{"weight":2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/relations", `{"source":"`+a.ID+`","target":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/relations", `{"source":"`+a.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/relations/"+edge.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.store.Edges())
}

func TestSelectionAndDelete(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddAgentNode(graph.Position{})
	b := f.store.AddAgentNode(graph.Position{})
	e, err := f.store.AddRelationEdge(a.ID, b.ID, nil)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/delete", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/selection", `{"node_id":"`+a.ID+`","edge_id":"`+e.ID+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/selection", `{"node_id":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/selection", `{"edge_id":"`+e.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, e.ID, f.store.Selection().EdgeID)

	w = f.do(t, http.MethodDelete, "/api/selection", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.store.Selection().Empty())

	f.do(t, http.MethodPost, "/api/selection", `{"node_id":"`+a.ID+`"}`)
	w = f.do(t, http.MethodPost, "/api/delete", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, editor.Deleted{Kind: "agent", ID: a.ID}, decode[editor.Deleted](t, w))
	assert.Empty(t, f.store.Edges(), "cascade removes the relation")
}

func TestClearRequiresConfirm(t *testing.T) {
	f := newFixture(t)
	f.store.AddAgentNode(graph.Position{})

	w := f.do(t, http.MethodPost, "/api/clear", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.store.Nodes(), 1)

	w = f.do(t, http.MethodPost, "/api/clear?confirm=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.store.Nodes())
	assert.False(t, f.store.IsDirty())
}

func TestExportSaveImport(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddAgentNode(graph.Position{})
	b := f.store.AddAgentNode(graph.Position{})
	_, err := f.store.AddRelationEdge(a.ID, b.ID, &graph.RelationPatch{Weight: graph.Ptr(0.5)})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/export?format=yaml", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "agent_graph.yaml")
	assert.False(t, f.store.IsDirty())
	assert.EqualValues(t, 1, f.persists.Load(), "export clears dirty and persists")

	w = f.do(t, http.MethodGet, "/api/export?format=xml", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	exported := w.Body.String()
	doc, err := codec.Parse([]byte(exported))
	require.NoError(t, err)
	assert.Len(t, doc.Agents, 2)

	f.store.AddAgentNode(graph.Position{})
	w = f.do(t, http.MethodPost, "/api/save", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.saver.docs, 1)
	assert.Contains(t, w.Body.String(), `"dirty":false`)

	f.store.AddAgentNode(graph.Position{})
	f.saver.err = errors.New("panel down")
	w = f.do(t, http.MethodPost, "/api/save", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.True(t, f.store.IsDirty())

	w = f.do(t, http.MethodPost, "/api/import", exported)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.store.Nodes(), 2)
	assert.False(t, f.store.IsDirty())

	w = f.do(t, http.MethodPost, "/api/import", `{"version":"1.0","agents":[],"relations":[{"source":"x","target":"y"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.store.Nodes(), 2, "rejected import leaves the graph untouched")
}

func TestGraphAndStats(t *testing.T) {
	f := newFixture(t)
	a := f.store.AddAgentNode(graph.Position{})
	_, err := f.store.AddRelationEdge(a.ID, a.ID, &graph.RelationPatch{Weight: graph.Ptr(0.9)})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[graphView](t, w)
	assert.Len(t, view.Nodes, 1)
	assert.Len(t, view.Edges, 1)
	assert.True(t, view.Dirty)
	assert.Equal(t, "agent_graph", view.Config)

	w = f.do(t, http.MethodGet, "/api/stats", "")
	st := decode[graph.Stats](t, w)
	assert.Equal(t, 1, st.SelfLoops)
	assert.Equal(t, 1, st.Positive)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/agents", "")
	f.do(t, http.MethodGet, "/api/graph", "")

	w := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `society_editor_mutations_total{kind="node_added"} 1`)
	assert.Contains(t, body, "society_editor_dirty 1")
	assert.Contains(t, body, `society_http_requests_total{method="POST",route="/api/agents",status="201"} 1`)
}

func TestMetricsDirtySurvivesSelection(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/agents", "")
	require.Equal(t, http.StatusCreated, w.Code)
	a := decode[graph.AgentNode](t, w)

	w = f.do(t, http.MethodPost, "/api/selection", `{"node_id":"`+a.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	f.do(t, http.MethodDelete, "/api/selection", "")
	require.True(t, f.store.IsDirty())

	w = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "society_editor_dirty 1")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor(editor.ErrSaveFailed))
	assert.Equal(t, http.StatusNotFound, statusFor(graph.ErrNodeNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(codec.ErrInvalidDocument))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.hub.size() == 1 }, time.Second, 10*time.Millisecond)

	node := f.store.AddAgentNode(graph.Position{})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var change graph.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, graph.NodeAdded, change.Kind)
	assert.Equal(t, node.ID, change.ID)
	assert.True(t, change.Dirty)
}
