package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"dreamframe_back/gallery"
	"dreamframe_back/generation"
	"dreamframe_back/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func mustLoadEnv() {
	_ = godotenv.Load()
}

func allowedOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS"))
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func main() {
	mustLoadEnv()

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins(),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Accept"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	store, err := storage.NewGatewayFromEnv()
	if err != nil {
		log.Fatalf("init object storage: %v", err)
	}

	// A typed-nil *storage.Gateway inside an interface would dodge the
	// handlers' nil checks; only wrap the gateway when it exists.
	var objectStore generation.ObjectStore
	var galleryStore gallery.Store
	if store != nil {
		objectStore = store
		galleryStore = store
	} else {
		log.Printf("object storage not configured; saving and gallery will be unavailable")
	}

	if _, err := generation.RegisterRoutes(r, objectStore); err != nil {
		log.Fatalf("register generation routes: %v", err)
	}

	if _, err := gallery.RegisterRoutes(r, galleryStore); err != nil {
		log.Fatalf("register gallery routes: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("start server: %v", err)
	}
}
