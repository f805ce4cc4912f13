package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	err         error
	calls       int
	key         string
	contentType string
	data        []byte
}

func (f *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	f.calls++
	f.key = key
	f.data = data
	f.contentType = contentType
	return f.err
}

func newTestModule(t *testing.T, engineHandler http.HandlerFunc, store ObjectStore) (*Module, *gin.Engine) {
	t.Helper()

	srv := httptest.NewServer(engineHandler)
	t.Cleanup(srv.Close)

	module := &Module{
		client:  newTestClient(srv.URL),
		store:   store,
		session: &session{},
	}
	router := gin.New()
	module.registerRoutes(router)
	return module, router
}

func singleArtifactEngine(base64Payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerationResult{Artifacts: []Artifact{
			{Base64: base64Payload, Seed: 1234, FinishReason: "SUCCESS"},
		}})
	}
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerateThenSave(t *testing.T) {
	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	payload := EncodeImageBase64(imageBytes)
	store := &fakeStore{}

	_, router := newTestModule(t, singleArtifactEngine(payload), store)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	require.Equal(t, http.StatusOK, w.Code)

	var generated struct {
		Image        string `json:"image"`
		Seed         int64  `json:"seed"`
		FinishReason string `json:"finish_reason"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &generated))
	assert.Equal(t, "data:image/png;base64,"+payload, generated.Image)
	assert.Equal(t, int64(1234), generated.Seed)
	assert.Equal(t, "SUCCESS", generated.FinishReason)

	w = postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var saved struct {
		Saved bool   `json:"saved"`
		Key   string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.True(t, saved.Saved)
	assert.Equal(t, "a_red_fox", saved.Key)

	require.Equal(t, 1, store.calls)
	assert.Equal(t, "a_red_fox", store.key)
	assert.Equal(t, "image/png", store.contentType)
	assert.Equal(t, imageBytes, store.data)
}

func TestSaveUsesCurrentPromptText(t *testing.T) {
	store := &fakeStore{}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	require.Equal(t, http.StatusOK, w.Code)

	// The prompt has diverged since the image was generated; the key follows
	// the current text.
	w = postJSON(router, "/generation/save", gin.H{"prompt": "My Sunset! Photo"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "my_sunset_photo", store.key)
}

func TestGenerateRejectsOverlappingRequest(t *testing.T) {
	store := &fakeStore{}
	module, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	module.session.mu.Lock()
	module.session.generating = true
	module.session.mu.Unlock()

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGenerateRemoteErrorClearsBusyState(t *testing.T) {
	store := &fakeStore{}
	module, router := newTestModule(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("engine exploded"))
	}, store)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "engine exploded")

	module.session.mu.Lock()
	generating := module.session.generating
	module.session.mu.Unlock()
	assert.False(t, generating)

	// The next request is not blocked by the failed one.
	w = postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSaveWithoutImageIsNoOp(t *testing.T) {
	store := &fakeStore{}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	w := postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":false`)
	assert.Equal(t, 0, store.calls)
}

func TestSaveEmptyObjectNameIsReported(t *testing.T) {
	store := &fakeStore{}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	w := postJSON(router, "/generation", gin.H{"prompt": "___"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":false`)
	assert.Equal(t, 0, store.calls)
}

func TestSaveUploadFailureIsNonFatal(t *testing.T) {
	store := &fakeStore{err: errors.New("bucket unavailable")}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":false`)

	// The session keeps its image; a later retry can still succeed.
	store.err = nil
	w = postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":true`)
}

// chunkedBody hides the reader's concrete type so httptest leaves
// ContentLength at -1, the way a chunked transfer arrives.
type chunkedBody struct {
	r io.Reader
}

func (c chunkedBody) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func TestSaveBindsBodyWithoutContentLength(t *testing.T) {
	store := &fakeStore{}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/generation/save",
		chunkedBody{r: strings.NewReader(`{"prompt":"My Sunset! Photo"}`)})
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, int64(-1), req.ContentLength)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"saved":true`)
	assert.Equal(t, "my_sunset_photo", store.key)
}

func TestSaveWithoutStoreConfigured(t *testing.T) {
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), nil)

	w := postJSON(router, "/generation", gin.H{"prompt": "a red fox"})
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(router, "/generation/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"saved":false`)
	assert.Contains(t, w.Body.String(), "object storage not configured")
}

func TestHistoryWithoutDatabase(t *testing.T) {
	store := &fakeStore{}
	_, router := newTestModule(t, singleArtifactEngine("aGVsbG8="), store)

	req := httptest.NewRequest(http.MethodGet, "/generation/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"records":[]}`, w.Body.String())
}
