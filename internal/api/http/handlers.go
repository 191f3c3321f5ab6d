package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/store"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

// Handlers binds the registry and store aggregator to the HTTP
// command surface. No business logic lives here; every route maps 1:1
// to a domain operation.
type Handlers struct {
	registry   *registry.Manager
	aggregator *store.Aggregator
	sources    *store.Sources
	logger     *logging.Logger
}

// NewHandlers creates the handler set
func NewHandlers(reg *registry.Manager, agg *store.Aggregator, sources *store.Sources, logger *logging.Logger) *Handlers {
	return &Handlers{
		registry:   reg,
		aggregator: agg,
		sources:    sources,
		logger:     logger,
	}
}

// Health reports service liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "arcadia-extension-runtime",
	})
}

// Root is the index endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "arcadia-extension-runtime",
		"stats":   h.registry.Stats(),
	})
}

// fail writes a domain error with the right status code
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  kindFor(err),
	})
}

func statusFor(err error) int {
	var (
		notFound   *types.NotFoundError
		dup        *types.AlreadyInstalledError
		inProgress *types.OperationInProgressError
		manifest   *types.ManifestError
		dependency *types.DependencyError
		permission *types.PermissionError
		network    *types.NetworkError
		checksum   *types.ChecksumError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &dup), errors.As(err, &inProgress):
		return http.StatusConflict
	case errors.As(err, &manifest), errors.As(err, &dependency), errors.As(err, &checksum):
		return http.StatusBadRequest
	case errors.As(err, &permission):
		return http.StatusForbidden
	case errors.As(err, &network):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindFor(err error) string {
	var (
		notFound   *types.NotFoundError
		dup        *types.AlreadyInstalledError
		inProgress *types.OperationInProgressError
		manifest   *types.ManifestError
		dependency *types.DependencyError
		permission *types.PermissionError
		network    *types.NetworkError
		checksum   *types.ChecksumError
		io         *types.IOError
		extension  *types.ExtensionError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &dup):
		return "already_installed"
	case errors.As(err, &inProgress):
		return "operation_in_progress"
	case errors.As(err, &manifest):
		return "manifest"
	case errors.As(err, &dependency):
		return "dependency"
	case errors.As(err, &permission):
		return "permission"
	case errors.As(err, &network):
		return "network"
	case errors.As(err, &checksum):
		return "checksum"
	case errors.As(err, &io):
		return "io"
	case errors.As(err, &extension):
		return "extension"
	default:
		return "internal"
	}
}
