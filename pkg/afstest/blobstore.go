package afstest

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi"
)

// BlobStore is a fake S3-compatible endpoint that only knows which buckets
// exist. It answers path-style HeadBucket requests.
type BlobStore struct {
	*httptest.Server

	m       sync.Mutex
	buckets map[string]bool
	heads   int
}

// NewBlobStore starts a fake holding the given buckets.
func NewBlobStore(buckets ...string) *BlobStore {
	b := &BlobStore{buckets: make(map[string]bool)}
	for _, name := range buckets {
		b.buckets[name] = true
	}

	r := chi.NewRouter()
	r.Head("/{bucket}", func(w http.ResponseWriter, r *http.Request) {
		b.m.Lock()
		b.heads++
		found := b.buckets[chi.URLParam(r, "bucket")]
		b.m.Unlock()
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	b.Server = httptest.NewServer(r)
	return b
}

// HeadRequests counts the HeadBucket calls received.
func (b *BlobStore) HeadRequests() int {
	b.m.Lock()
	defer b.m.Unlock()
	return b.heads
}
