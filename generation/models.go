package generation

import (
	"time"

	"gorm.io/datatypes"
)

// Fixed sampling parameters sent with every text-to-image request.
const (
	cfgScale    = 7
	imageWidth  = 1024
	imageHeight = 1024
	stepCount   = 30
	sampleCount = 1
)

// textPrompt matches the API payload structure for prompt entries.
type textPrompt struct {
	Text string `json:"text"`
}

// generationRequest represents the request body sent to the engine.
type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
}

// Artifact is one generated-image result unit returned by the engine.
type Artifact struct {
	Base64       string `json:"base64"`
	Seed         int64  `json:"seed"`
	FinishReason string `json:"finishReason"`
}

// GenerationResult is the decoded response body. Only the first artifact is
// consumed; additional samples are ignored.
type GenerationResult struct {
	Artifacts []Artifact `json:"artifacts"`
}

// GenerationRecord is the persisted trail of a saved generation.
type GenerationRecord struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	Prompt       string         `gorm:"type:text" json:"prompt"`
	ObjectKey    string         `gorm:"size:64;index" json:"object_key"`
	Seed         int64          `json:"seed"`
	FinishReason string         `gorm:"size:32" json:"finish_reason"`
	SizeBytes    int64          `json:"size_bytes"`
	Settings     datatypes.JSON `json:"settings,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}
