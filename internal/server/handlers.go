package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentkernel/society/internal/codec"
	"github.com/agentkernel/society/internal/editor"
	"github.com/agentkernel/society/internal/graph"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrNodeNotFound), errors.Is(err, graph.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrSaveFailed):
		return http.StatusBadGateway
	case errors.Is(err, codec.ErrInvalidDocument),
		errors.Is(err, graph.ErrInvalidTrait),
		errors.Is(err, graph.ErrInvalidWeight),
		errors.Is(err, graph.ErrDuplicateID),
		errors.Is(err, editor.ErrBadFormat),
		errors.Is(err, editor.ErrImportFailed),
		errors.Is(err, editor.ErrNotConfirmed):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func notFound(c *gin.Context, kind, id string) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("%s %q not found", kind, id)})
}

// bindOptional decodes a JSON body when one was sent.
func bindOptional(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}

// ─── Read ───

type graphView struct {
	Nodes     []graph.AgentNode    `json:"nodes"`
	Edges     []graph.RelationEdge `json:"edges"`
	Selection graph.Selection      `json:"selection"`
	Dirty     bool                 `json:"dirty"`
	Revision  uint64               `json:"revision"`
	Config    string               `json:"config_name"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

func (s *Server) handleGraph(c *gin.Context) {
	c.JSON(http.StatusOK, graphView{
		Nodes:     s.store.Nodes(),
		Edges:     s.store.Edges(),
		Selection: s.store.Selection(),
		Dirty:     s.store.IsDirty(),
		Revision:  s.store.Revision(),
		Config:    s.ctl.ConfigName(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Stats())
}

func (s *Server) handleShowAgent(c *gin.Context) {
	res, err := s.store.Show(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ─── Agents ───

func (s *Server) handleAddAgent(c *gin.Context) {
	var patch graph.AgentPatch
	if err := bindOptional(c, &patch); err != nil {
		s.badRequest(c, err)
		return
	}
	if err := patch.Validate(); err != nil {
		s.fail(c, err)
		return
	}

	node := s.ctl.AddAgent()
	if !patch.Empty() {
		if _, err := s.store.UpdateNodeData(node.ID, patch); err != nil {
			s.fail(c, err)
			return
		}
		node, _ = s.store.Node(node.ID)
	}
	c.JSON(http.StatusCreated, node)
}

func (s *Server) handleUpdateAgent(c *gin.Context) {
	id := c.Param("id")
	var patch graph.AgentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, err)
		return
	}
	ok, err := s.store.UpdateNodeData(id, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "agent", id)
		return
	}
	node, _ := s.store.Node(id)
	c.JSON(http.StatusOK, node)
}

func (s *Server) handleMoveAgent(c *gin.Context) {
	id := c.Param("id")
	var pos graph.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		s.badRequest(c, err)
		return
	}
	if !s.store.MoveNode(id, pos) {
		notFound(c, "agent", id)
		return
	}
	node, _ := s.store.Node(id)
	c.JSON(http.StatusOK, node)
}

func (s *Server) handleRemoveAgent(c *gin.Context) {
	id := c.Param("id")
	if !s.store.RemoveNode(id) {
		notFound(c, "agent", id)
		return
	}
	c.JSON(http.StatusOK, editor.Deleted{Kind: "agent", ID: id})
}

// ─── Relations ───

type connectRequest struct {
	Source       string   `json:"source" binding:"required"`
	Target       string   `json:"target" binding:"required"`
	RelationType *string  `json:"relation_type"`
	Weight       *float64 `json:"weight"`
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	var patch *graph.RelationPatch
	if req.RelationType != nil || req.Weight != nil {
		patch = &graph.RelationPatch{RelationType: req.RelationType, Weight: req.Weight}
	}
	edge, err := s.ctl.Connect(req.Source, req.Target, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (s *Server) handleUpdateRelation(c *gin.Context) {
	id := c.Param("id")
	var patch graph.RelationPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.badRequest(c, err)
		return
	}
	ok, err := s.store.UpdateEdgeData(id, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		notFound(c, "relation", id)
		return
	}
	edge, _ := s.store.Edge(id)
	c.JSON(http.StatusOK, edge)
}

func (s *Server) handleRemoveRelation(c *gin.Context) {
	id := c.Param("id")
	if !s.store.RemoveEdge(id) {
		notFound(c, "relation", id)
		return
	}
	c.JSON(http.StatusOK, editor.Deleted{Kind: "relation", ID: id})
}

// ─── Selection ───

func (s *Server) handleSelect(c *gin.Context) {
	var sel graph.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		s.badRequest(c, err)
		return
	}
	switch {
	case sel.NodeID != "" && sel.EdgeID != "":
		s.badRequest(c, errors.New("select either node_id or edge_id"))
		return
	case sel.NodeID != "":
		if !s.ctl.ClickNode(sel.NodeID) {
			notFound(c, "agent", sel.NodeID)
			return
		}
	case sel.EdgeID != "":
		if !s.ctl.ClickEdge(sel.EdgeID) {
			notFound(c, "relation", sel.EdgeID)
			return
		}
	default:
		s.ctl.ClickCanvas()
	}
	c.JSON(http.StatusOK, s.store.Selection())
}

func (s *Server) handleClearSelection(c *gin.Context) {
	s.ctl.ClickCanvas()
	c.JSON(http.StatusOK, s.store.Selection())
}

func (s *Server) handleDelete(c *gin.Context) {
	deleted, ok := s.ctl.Delete()
	if !ok {
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "nothing selected"})
		return
	}
	c.JSON(http.StatusOK, deleted)
}

func (s *Server) handleClear(c *gin.Context) {
	confirmed := c.Query("confirm") == "true"
	err := s.ctl.ClearAllWith(editor.ConfirmFunc(func(string) bool { return confirmed }))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Stats())
}

// ─── I/O boundaries ───

func (s *Server) handleExport(c *gin.Context) {
	format := editor.Format(c.DefaultQuery("format", string(editor.FormatJSON)))
	var buf bytes.Buffer
	if _, err := s.ctl.Export(c.Request.Context(), &buf, format); err != nil {
		s.fail(c, err)
		return
	}

	contentType, ext := "application/json", "json"
	if format == editor.FormatYAML {
		contentType, ext = "application/yaml", "yaml"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, s.ctl.ConfigName(), ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) handleSave(c *gin.Context) {
	doc, err := s.ctl.Save(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"config_name": s.ctl.ConfigName(),
		"agents":      len(doc.Agents),
		"relations":   len(doc.Relations),
		"dirty":       s.store.IsDirty(),
	})
}

func (s *Server) handleImport(c *gin.Context) {
	doc, err := s.ctl.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"agents":    len(doc.Agents),
		"relations": len(s.store.Edges()),
	})
}
