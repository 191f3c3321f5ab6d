package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// maxManifestBytes bounds install/update request bodies; manifests are
// small declarative documents.
const maxManifestBytes = 1 << 20

// ListExtensions returns all installed extensions
func (h *Handlers) ListExtensions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"extensions": h.registry.List()})
}

// GetExtension returns one extension by id
func (h *Handlers) GetExtension(c *gin.Context) {
	info, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// InstallExtension installs from a raw manifest body
func (h *Handlers) InstallExtension(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxManifestBytes))
	if err != nil {
		fail(c, &types.IOError{Op: "read", Err: err})
		return
	}

	info, err := h.registry.Install(c.Request.Context(), raw, "")
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// UpdateExtension replaces an extension's manifest in place
func (h *Handlers) UpdateExtension(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxManifestBytes))
	if err != nil {
		fail(c, &types.IOError{Op: "read", Err: err})
		return
	}

	info, err := h.registry.Update(c.Request.Context(), c.Param("id"), raw)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// UninstallExtension removes an extension and its settings
func (h *Handlers) UninstallExtension(c *gin.Context) {
	if err := h.registry.Uninstall(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uninstalled": true})
}

// EnableExtension enables an extension
func (h *Handlers) EnableExtension(c *gin.Context) {
	if err := h.registry.Enable(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	info, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DisableExtension disables an extension
func (h *Handlers) DisableExtension(c *gin.Context) {
	if err := h.registry.Disable(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	info, err := h.registry.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// CallAPI invokes an extension-provided API by name
func (h *Handlers) CallAPI(c *gin.Context) {
	var params map[string]interface{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, &types.ManifestError{Kind: types.ManifestMalformed, Field: "body", Cause: err.Error()})
			return
		}
	}

	result, err := h.registry.CallAPI(c.Request.Context(), c.Param("id"), c.Param("name"), params)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// Menu returns the aggregated menu items of enabled extensions
func (h *Handlers) Menu(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.registry.Menu()})
}

// InvokeHook dispatches a host-fired hook to registered handlers
func (h *Handlers) InvokeHook(c *gin.Context) {
	var params map[string]interface{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, &types.ManifestError{Kind: types.ManifestMalformed, Field: "body", Cause: err.Error()})
			return
		}
	}

	outcomes := h.registry.InvokeHook(c.Request.Context(), c.Param("name"), params)
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes})
}
