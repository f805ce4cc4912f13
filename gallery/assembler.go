package gallery

import (
	"context"
	"log"
	"time"

	"dreamframe_back/storage"
	"golang.org/x/sync/errgroup"
)

// Entry is one gallery item: the stored object name and a time-limited URL
// for reading it. URL is empty when signing failed for that object; the UI
// skips empty entries.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// URLSigner issues a temporary read URL for a stored object.
type URLSigner interface {
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// Assemble resolves a signed URL for every listed object name. Placeholder
// entries are excluded from the result entirely. Resolutions run
// concurrently and independently: one failure neither delays nor aborts the
// others, it only leaves that entry's URL empty. The output preserves the
// input order regardless of completion order.
func Assemble(ctx context.Context, signer URLSigner, names []string) []Entry {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if storage.IsPlaceholder(name) {
			continue
		}
		filtered = append(filtered, name)
	}

	entries := make([]Entry, len(filtered))

	g := new(errgroup.Group)
	for i, name := range filtered {
		g.Go(func() error {
			url, err := signer.SignedURL(ctx, name, storage.DefaultSignedURLTTL)
			if err != nil {
				log.Printf("gallery: sign %s failed: %v", name, err)
				url = ""
			}
			entries[i] = Entry{Name: name, URL: url}
			return nil
		})
	}
	_ = g.Wait()

	return entries
}
