/*
Copyright 2024 The Releaser authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package testserver provides HTTP servers that serve generated artifact
// files for testing purposes.
package testserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
)

// NewTempHTTPServer returns an HTTPServer with a newly created temp dir as
// the docroot.
func NewTempHTTPServer() (*HTTPServer, error) {
	tmpDir, err := os.MkdirTemp("", "http-test-")
	if err != nil {
		return nil, err
	}
	return NewHTTPServer(tmpDir), nil
}

// NewHTTPServer returns an HTTPServer with the given docroot set.
func NewHTTPServer(docroot string) *HTTPServer {
	root, err := filepath.Abs(docroot)
	if err != nil {
		panic(err)
	}
	return &HTTPServer{
		docroot: root,
	}
}

// HTTPServer is an HTTP server for testing purposes. It serves files from
// the configured docroot and offers a lightweight middleware configuration
// option.
type HTTPServer struct {
	docroot    string
	middleware func(http.Handler) http.Handler
	server     *httptest.Server
}

// WithMiddleware configures the middleware of the HTTPServer, this can for
// example be used to count requests or fail responses on purpose. It
// should be called before starting the server, or requires a stop/start
// cycle.
func (s *HTTPServer) WithMiddleware(m func(handler http.Handler) http.Handler) *HTTPServer {
	s.middleware = m
	return s
}

// Start starts the HTTPServer.
func (s *HTTPServer) Start() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := http.Handler(http.FileServer(http.Dir(s.docroot)))
		if s.middleware != nil {
			handler = s.middleware(handler)
		}
		handler.ServeHTTP(w, r)
	}))
}

// Stop stops the HTTPServer, if started.
func (s *HTTPServer) Stop() {
	if s.server != nil {
		s.server.Close()
	}
}

// Root returns the configured docroot of the HTTPServer.
func (s *HTTPServer) Root() string {
	return s.docroot
}

// URL returns the address the HTTPServer is listening at, if started.
func (s *HTTPServer) URL() string {
	if s.server != nil {
		return s.server.URL
	}
	return ""
}
