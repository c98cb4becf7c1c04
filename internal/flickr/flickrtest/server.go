// Package flickrtest runs an in-process fake of the photosets REST API and
// its image host for tests.
package flickrtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Photo is one photo served by the fake.
type Photo struct {
	ID    string
	Title string
	Tags  []string
}

// Server is a fake REST endpoint plus image host.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	title       string
	description string
	updated     time.Time
	photos      []Photo
	imageSize   int
	failing     bool
	infoCalls   int
	photosCalls int
	imageCalls  int
}

// NewServer starts a fake serving an empty photoset titled "Cartoons".
// It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{title: "Cartoons", imageSize: 1024}
	mux := http.NewServeMux()
	mux.HandleFunc("/services/rest", s.handleREST)
	mux.HandleFunc("/img/", s.handleImage)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the REST base URL to configure clients with.
func (s *Server) APIURL() string { return s.URL + "/services/rest" }

// ImageURL is the URL the fake advertises for the photo's image.
func (s *Server) ImageURL(id string) string { return s.URL + "/img/" + id + ".jpg" }

// SetPhotos replaces the photoset contents and its update time.
func (s *Server) SetPhotos(updated time.Time, photos ...Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = updated
	s.photos = append([]Photo(nil), photos...)
}

// SetDescription sets the photoset description.
func (s *Server) SetDescription(d string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.description = d
}

// SetImageSize sets the byte size of every served image.
func (s *Server) SetImageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imageSize = n
}

// SetFailing makes every request fail with HTTP 503.
func (s *Server) SetFailing(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = fail
}

// Calls returns how many getInfo, getPhotos and image requests were served.
func (s *Server) Calls() (info, photos, images int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.infoCalls, s.photosCalls, s.imageCalls
}

func (s *Server) handleREST(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var body any
	switch r.URL.Query().Get("method") {
	case "flickr.photosets.getInfo":
		s.infoCalls++
		body = map[string]any{
			"stat": "ok",
			"photoset": map[string]any{
				"id":          r.URL.Query().Get("photoset_id"),
				"photos":      strconv.Itoa(len(s.photos)),
				"date_update": strconv.FormatInt(s.updated.Unix(), 10),
				"title":       map[string]string{"_content": s.title},
				"description": map[string]string{"_content": s.description},
			},
		}
	case "flickr.photosets.getPhotos":
		s.photosCalls++
		list := make([]map[string]any, 0, len(s.photos))
		for _, p := range s.photos {
			list = append(list, map[string]any{
				"id":       p.ID,
				"title":    p.Title,
				"tags":     strings.Join(p.Tags, " "),
				"url_m":    s.ImageURL(p.ID),
				"width_m":  "500",
				"height_m": 375,
			})
		}
		body = map[string]any{
			"stat": "ok",
			"photoset": map[string]any{
				"page":  1,
				"pages": 1,
				"total": len(s.photos),
				"photo": list,
			},
		}
	default:
		body = map[string]any{"stat": "fail", "code": 112, "message": "Method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failing, size := s.failing, s.imageSize
	s.imageCalls++
	s.mu.Unlock()

	if failing {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(bytes.Repeat([]byte{0xff}, size))
}
