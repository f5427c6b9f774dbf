// Package testutil provides HTTP fixtures for crawler and audit tests.
package testutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Server is a configurable site served over httptest.
type Server struct {
	srv       *httptest.Server
	mu        sync.RWMutex
	pages     map[string]*Page
	delays    map[string]time.Duration
	redirects map[string]redirect
	hits      map[string]int
	requests  map[string]http.Header
}

type redirect struct {
	to   string
	code int
}

// Page is one response the server returns.
type Page struct {
	Body        string
	ContentType string
	StatusCode  int
	Headers     http.Header
	// Gzip compresses the body when the client accepts it.
	Gzip bool
}

// NewServer starts a server that is closed when t finishes.
func NewServer(t testing.TB) *Server {
	s := &Server{
		pages:     make(map[string]*Page),
		delays:    make(map[string]time.Duration),
		redirects: make(map[string]redirect),
		hits:      make(map[string]int),
		requests:  make(map[string]http.Header),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	s.mu.Lock()
	s.hits[path]++
	s.requests[path] = r.Header.Clone()
	delay := s.delays[path]
	rd, isRedirect := s.redirects[path]
	page := s.pages[path]
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if isRedirect {
		http.Redirect(w, r, rd.to, rd.code)
		return
	}
	if page == nil {
		http.NotFound(w, r)
		return
	}

	for k, vs := range page.Headers {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	ct := page.ContentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)

	status := page.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	if page.Gzip && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(status)
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, page.Body)
		_ = gz.Close()
		return
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, page.Body)
}

// Handle registers page at path.
func (s *Server) Handle(path string, page Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := page
	s.pages[path] = &p
}

// HTML registers a 200 text/html page.
func (s *Server) HTML(path, body string) {
	s.Handle(path, Page{Body: body})
}

// Status registers an HTML page with a fixed status code.
func (s *Server) Status(path, body string, code int) {
	s.Handle(path, Page{Body: body, StatusCode: code})
}

// Redirect makes from answer with a 301 to to.
func (s *Server) Redirect(from, to string) {
	s.RedirectWith(from, to, http.StatusMovedPermanently)
}

// RedirectWith makes from answer with the given redirect code.
func (s *Server) RedirectWith(from, to string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects[from] = redirect{to: to, code: code}
}

// Delay slows every response for path.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[path]
}

// LastRequest returns the headers of the latest request for path.
func (s *Server) LastRequest(path string) http.Header {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[path]
}

// URL returns the server root without a trailing slash.
func (s *Server) URL() string {
	return s.srv.URL
}

// At returns the absolute URL of path.
func (s *Server) At(path string) string {
	return s.srv.URL + path
}

// BuildAuditSite serves a small site exercising the link-graph checks:
//
//	/            -> /about, /products, /blog, /missing
//	/products    -> /products/1, /products/2
//	/products/N  -> /products, /products/N/specs (depth 3)
//	/blog        -> /blog/post (same body as /blog/copy)
//	/orphan      unlinked, reachable only as a seed
//	/missing     404
//	/old         301 to /about
func (s *Server) BuildAuditSite() {
	s.HTML("/", NewHTMLBuilder().
		Title("Acme Tools: durable hand tools for makers").
		H1("Acme Tools").
		Link("/about", "About").
		Link("/products", "Products").
		Link("/blog", "Blog").
		Link("/missing", "Missing").
		Link("https://external.example.org/", "Partner").
		Build())

	s.HTML("/about", NewHTMLBuilder().Title("About Acme").H1("About").Link("/", "Home").Build())

	s.HTML("/products", NewHTMLBuilder().
		Title("Products").
		H1("Products").
		Link("/products/1", "Hammer").
		Link("/products/2", "Saw").
		Build())

	for i := 1; i <= 2; i++ {
		s.HTML(fmt.Sprintf("/products/%d", i), NewHTMLBuilder().
			Title(fmt.Sprintf("Product %d", i)).
			H1(fmt.Sprintf("Product %d", i)).
			Img(fmt.Sprintf("/img/%d.jpg", i), "").
			Link("/products", "Back").
			Link(fmt.Sprintf("/products/%d/specs", i), "Specs").
			Build())
		s.HTML(fmt.Sprintf("/products/%d/specs", i), NewHTMLBuilder().
			Title(fmt.Sprintf("Product %d specs", i)).
			Body(fmt.Sprintf("<p>Specifications for product %d</p>", i)).
			Build())
	}

	post := NewHTMLBuilder().Title("Post").H1("Post").Body("<p>Shared article body text.</p>")
	s.HTML("/blog", NewHTMLBuilder().Title("Blog").H1("Blog").Link("/blog/post", "Post").Build())
	s.HTML("/blog/post", post.Build())
	s.HTML("/blog/copy", post.Build())

	s.HTML("/orphan", NewHTMLBuilder().Title("Orphan").H1("Nobody links here").Build())
	s.Redirect("/old", "/about")
}
