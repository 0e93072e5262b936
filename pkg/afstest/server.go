// Package afstest provides in-process fakes of the AFS API and of an
// S3-compatible blob store for tests.
package afstest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

// Default root body, as served by an AFS v2 deployment.
const DefaultRoot = `{"API_version":"v2","AFS_version":"2.0.2"}`

// BlobInfo is served by the blob info endpoint.
type BlobInfo struct {
	BlobRecordID string `json:"blob_record_id,omitempty"`
	BucketName   string `json:"bucket_name,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	AccessKey    string `json:"access_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty"`
}

// Request is a request seen by a fake server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Server is a fake AFS API.
type Server struct {
	*httptest.Server

	m          sync.Mutex
	rootStatus int
	rootBody   string
	blobs      map[string]BlobInfo
	bucket     interface{}
	requests   []Request
}

// NewServer starts a fake AFS answering DefaultRoot at "/". Close it when done.
func NewServer() *Server {
	s := &Server{
		rootStatus: http.StatusOK,
		rootBody:   DefaultRoot,
		blobs:      make(map[string]BlobInfo),
	}
	s.Server = httptest.NewServer(s.createRouter())
	return s
}

// SetRoot replaces the status and raw body served at "/".
func (s *Server) SetRoot(status int, body string) {
	s.m.Lock()
	defer s.m.Unlock()
	s.rootStatus = status
	s.rootBody = body
}

// AddBlob registers the credentials returned for blobID.
func (s *Server) AddBlob(blobID string, info BlobInfo) {
	s.m.Lock()
	defer s.m.Unlock()
	s.blobs[blobID] = info
}

// SetBucket sets the value served by the bucket listing. Without one the
// listing answers 404.
func (s *Server) SetBucket(bucket interface{}) {
	s.m.Lock()
	defer s.m.Unlock()
	s.bucket = bucket
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.m.Lock()
	defer s.m.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsTo returns the requests received for path.
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		s.m.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		status, body := s.rootStatus, s.rootBody
		s.m.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})

	r.Get("/info/bucket", func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		bucket := s.bucket
		s.m.Unlock()
		if bucket == nil {
			render.Render(w, r, &errResponse{
				HTTPStatusCode: http.StatusNotFound,
				ErrorType:      "NotFound",
				ErrorMessage:   "no bucket configured",
			})
			return
		}
		render.JSON(w, r, map[string]interface{}{"bucket": bucket})
	})

	r.Get("/{apiVersion}/instances/{instanceID}/blobs/{blobID}/info", func(w http.ResponseWriter, r *http.Request) {
		blobID := chi.URLParam(r, "blobID")
		s.m.Lock()
		info, found := s.blobs[blobID]
		s.m.Unlock()
		if !found {
			render.Render(w, r, &errResponse{
				HTTPStatusCode: http.StatusNotFound,
				ErrorType:      "NotFound",
				ErrorMessage:   "no blob " + blobID,
			})
			return
		}
		render.JSON(w, r, info)
	})

	return r
}

type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	ErrorType      string `json:"errorType,omitempty"`
	ErrorMessage   string `json:"errorMessage"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}
