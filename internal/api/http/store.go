package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// QueryStore returns one page of the merged store catalog
func (h *Handlers) QueryStore(c *gin.Context) {
	filters := types.StoreFilters{
		Search: c.Query("search"),
	}
	if t := c.Query("type"); t != "" {
		extType := types.ExtensionType(t)
		if !extType.Valid() {
			fail(c, &types.ManifestError{Kind: types.ManifestUnsupportedType, Field: "type"})
			return
		}
		filters.Type = &extType
	}
	if tags := c.Query("tags"); tags != "" {
		filters.Tags = strings.Split(tags, ",")
	}
	if sources := c.Query("sources"); sources != "" {
		filters.SourceIDs = strings.Split(sources, ",")
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	sortBy := types.SortOption(c.DefaultQuery("sort", string(types.SortName)))

	result, err := h.aggregator.Query(c.Request.Context(), filters, sortBy, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StoreDetails returns the extended record for one catalog entry
func (h *Handlers) StoreDetails(c *gin.Context) {
	details, err := h.aggregator.GetDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// InstallFromStore installs a catalog entry through the registry
func (h *Handlers) InstallFromStore(c *gin.Context) {
	info, err := h.aggregator.Install(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// CheckUpdates reports available updates for installed extensions
func (h *Handlers) CheckUpdates(c *gin.Context) {
	updates, err := h.aggregator.CheckUpdates(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updates": updates})
}
