package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

type addSourceBody struct {
	Name     string `json:"name" binding:"required"`
	Type     string `json:"type" binding:"required"`
	BaseURL  string `json:"base_url" binding:"required"`
	Priority int    `json:"priority"`
}

type priorityBody struct {
	Priority int `json:"priority"`
}

// ListSources returns all configured store sources
func (h *Handlers) ListSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.sources.List()})
}

// AddSource registers a new store source
func (h *Handlers) AddSource(c *gin.Context) {
	var body addSourceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &types.ManifestError{Kind: types.ManifestMalformed, Field: "body", Cause: err.Error()})
		return
	}

	src, err := h.sources.Add(c.Request.Context(), body.Name, types.SourceType(body.Type), body.BaseURL, body.Priority)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, src)
}

// RemoveSource deletes a store source
func (h *Handlers) RemoveSource(c *gin.Context) {
	if err := h.sources.Remove(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// EnableSource enables a store source
func (h *Handlers) EnableSource(c *gin.Context) {
	if err := h.sources.SetEnabled(c.Request.Context(), c.Param("id"), true); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true})
}

// DisableSource disables a store source
func (h *Handlers) DisableSource(c *gin.Context) {
	if err := h.sources.SetEnabled(c.Request.Context(), c.Param("id"), false); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": false})
}

// SetSourcePriority reprioritizes a store source
func (h *Handlers) SetSourcePriority(c *gin.Context) {
	var body priorityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &types.ManifestError{Kind: types.ManifestMalformed, Field: "body", Cause: err.Error()})
		return
	}

	if err := h.sources.SetPriority(c.Request.Context(), c.Param("id"), body.Priority); err != nil {
		fail(c, err)
		return
	}
	src, err := h.sources.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, src)
}
