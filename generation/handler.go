package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"dreamframe_back/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const savedContentType = "image/png"

// ObjectStore is the slice of the storage gateway the save flow needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// session holds the current prompt / current image state owned by the
// orchestrator. Every flow computes its full result before applying a single
// update under the lock.
type session struct {
	mu           sync.Mutex
	prompt       string
	image        string // data URI of the latest generated image
	seed         int64
	finishReason string
	generating   bool
}

// Module wires the generation client, object store and history database
// behind the /generation routes.
type Module struct {
	client  *Client
	store   ObjectStore
	db      *gorm.DB
	session *session
}

type generateForm struct {
	Prompt string `json:"prompt"`
}

type saveForm struct {
	Prompt *string `json:"prompt"`
}

// RegisterRoutes bootstraps the generation endpoints under /generation.
func RegisterRoutes(router *gin.Engine, store ObjectStore) (*Module, error) {
	client, err := NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := db.AutoMigrate(&GenerationRecord{}); err != nil {
			return nil, fmt.Errorf("generation: migrate tables: %w", err)
		}
	} else {
		log.Printf("generation: DATABASE_DSN not set; history disabled")
	}

	module := &Module{
		client:  client,
		store:   store,
		db:      db,
		session: &session{},
	}
	module.registerRoutes(router)
	return module, nil
}

func (m *Module) registerRoutes(router *gin.Engine) {
	group := router.Group("/generation")
	group.POST("", m.handleGenerate)
	group.POST("/save", m.handleSave)
	group.GET("/history", m.handleHistory)
}

// handleGenerate runs the generate flow: claim the busy flag, call the
// engine, and apply the result as the session's current image. A request
// arriving while a generation is in flight is rejected.
func (m *Module) handleGenerate(c *gin.Context) {
	var form generateForm
	if err := c.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	m.session.mu.Lock()
	if m.session.generating {
		m.session.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "a generation is already in progress"})
		return
	}
	m.session.generating = true
	m.session.prompt = form.Prompt
	m.session.mu.Unlock()

	result, err := m.client.Generate(c.Request.Context(), form.Prompt)
	if err != nil {
		m.session.mu.Lock()
		m.session.generating = false
		m.session.mu.Unlock()

		log.Printf("generation: generate failed: %v", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "status": apiErr.StatusCode, "detail": apiErr.Body})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	artifact := result.Artifacts[0]
	image := DataURI(artifact.Base64)

	m.session.mu.Lock()
	m.session.generating = false
	m.session.image = image
	m.session.seed = artifact.Seed
	m.session.finishReason = artifact.FinishReason
	m.session.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"image":         image,
		"seed":          artifact.Seed,
		"finish_reason": artifact.FinishReason,
	})
}

// handleSave runs the save flow. Failures are reported in the body and
// logged, never raised: the session stays usable.
func (m *Module) handleSave(c *gin.Context) {
	var form saveForm
	if err := c.ShouldBindJSON(&form); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	m.session.mu.Lock()
	if form.Prompt != nil {
		m.session.prompt = *form.Prompt
	}
	prompt := m.session.prompt
	image := m.session.image
	seed := m.session.seed
	finishReason := m.session.finishReason
	m.session.mu.Unlock()

	if image == "" {
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "no generated image to save"})
		return
	}

	// The key derives from the prompt text as it stands now, which may have
	// diverged from the prompt the image was generated with.
	key := storage.SanitizeObjectName(prompt)
	if key == "" {
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "prompt yields an empty object name"})
		return
	}

	if m.store == nil {
		log.Printf("generation: save %s: object storage not configured", key)
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "object storage not configured"})
		return
	}

	data, err := DecodeImagePayload(image)
	if err != nil {
		log.Printf("generation: save %s: %v", key, err)
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "image payload could not be decoded"})
		return
	}

	if err := m.store.Upload(c.Request.Context(), key, data, savedContentType); err != nil {
		log.Printf("generation: save %s: %v", key, err)
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "upload failed"})
		return
	}

	m.recordSave(prompt, key, seed, finishReason, int64(len(data)))

	c.JSON(http.StatusOK, gin.H{"saved": true, "key": key})
}

func (m *Module) recordSave(prompt, key string, seed int64, finishReason string, sizeBytes int64) {
	if m == nil || m.db == nil {
		return
	}

	settings, err := json.Marshal(map[string]int{
		"cfg_scale": cfgScale,
		"height":    imageHeight,
		"width":     imageWidth,
		"steps":     stepCount,
		"samples":   sampleCount,
	})
	if err != nil {
		settings = nil
	}

	record := GenerationRecord{
		ID:           uuid.NewString(),
		Prompt:       prompt,
		ObjectKey:    key,
		Seed:         seed,
		FinishReason: finishReason,
		SizeBytes:    sizeBytes,
		Settings:     datatypes.JSON(settings),
	}
	if err := m.db.Create(&record).Error; err != nil {
		log.Printf("generation: record save %s: %v", key, err)
	}
}

func (m *Module) handleHistory(c *gin.Context) {
	if m.db == nil {
		c.JSON(http.StatusOK, gin.H{"records": []GenerationRecord{}})
		return
	}

	var records []GenerationRecord
	if err := m.db.Order("created_at desc").Limit(100).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list generation history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}
