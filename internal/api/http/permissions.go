package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// ListPermissions returns the declared and granted permission sets
func (h *Handlers) ListPermissions(c *gin.Context) {
	extID := c.Param("id")
	info, err := h.registry.Get(extID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"extension_id": info.ID,
		"granted":      h.registry.Gate().Granted(extID),
	})
}

// GrantPermission grants a declared permission
func (h *Handlers) GrantPermission(c *gin.Context) {
	perm := types.Permission(c.Param("perm"))
	if err := h.registry.GrantPermission(c.Request.Context(), c.Param("id"), perm); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"granted": perm})
}

// RevokePermission revokes a permission, effective immediately
func (h *Handlers) RevokePermission(c *gin.Context) {
	perm := types.Permission(c.Param("perm"))
	if err := h.registry.RevokePermission(c.Request.Context(), c.Param("id"), perm); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": perm})
}
