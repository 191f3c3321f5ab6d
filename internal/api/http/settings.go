package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

type settingBody struct {
	Value string `json:"value"`
}

// ListSettings returns all settings for an extension
func (h *Handlers) ListSettings(c *gin.Context) {
	settings, err := h.registry.ListSettings(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// GetSetting returns one setting value
func (h *Handlers) GetSetting(c *gin.Context) {
	value, err := h.registry.GetSetting(c.Request.Context(), c.Param("id"), c.Param("key"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": value})
}

// PutSetting writes one setting value
func (h *Handlers) PutSetting(c *gin.Context) {
	var body settingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, &types.ManifestError{Kind: types.ManifestMalformed, Field: "body", Cause: err.Error()})
		return
	}

	if err := h.registry.SetSetting(c.Request.Context(), c.Param("id"), c.Param("key"), body.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": c.Param("key"), "value": body.Value})
}

// DeleteSetting removes one setting
func (h *Handlers) DeleteSetting(c *gin.Context) {
	if err := h.registry.DeleteSetting(c.Request.Context(), c.Param("id"), c.Param("key")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
