package gallery

import (
	"context"
	"log"
	"net/http"

	"dreamframe_back/storage"
	"github.com/gin-gonic/gin"
)

// Store is the slice of the storage gateway the gallery needs.
type Store interface {
	URLSigner
	ListObjects(ctx context.Context) ([]storage.ObjectInfo, error)
}

// Module serves the gallery reconstruction endpoint.
type Module struct {
	store Store
}

// RegisterRoutes bootstraps the gallery endpoint.
func RegisterRoutes(router *gin.Engine, store Store) (*Module, error) {
	module := &Module{store: store}
	router.GET("/gallery", module.handleGallery)
	return module, nil
}

// handleGallery rebuilds the gallery from scratch: list the bucket, drop
// placeholder entries, and resolve a signed URL per object. A partial
// gallery with some empty URLs is a valid degraded outcome.
func (m *Module) handleGallery(c *gin.Context) {
	if m == nil || m.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage not configured"})
		return
	}

	infos, err := m.store.ListObjects(c.Request.Context())
	if err != nil {
		log.Printf("gallery: list objects failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list stored images"})
		return
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}

	entries := Assemble(c.Request.Context(), m.store, names)

	c.JSON(http.StatusOK, gin.H{"images": entries})
}
