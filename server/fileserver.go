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

// Package server exposes a deploy target's release tree over plain HTTP,
// so peers can pull already-verified artifacts from each other instead of
// the upstream repository.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Options configures the file server.
type Options struct {
	// Root is the directory served, typically the deploy root or the
	// artifact cache root.
	Root string

	// Address is the TCP address the server listens on, in net.Listen
	// form, e.g. ":9090".
	Address string

	// ShutdownTimeout bounds the graceful shutdown after the context is
	// cancelled. Zero means 5 seconds.
	ShutdownTimeout time.Duration
}

// Start starts a blocking HTTP file server over the configured root. It
// supports graceful shutdown via the provided context and returns once
// the server has stopped.
func Start(ctx context.Context, opts *Options, log logr.Logger) error {
	if opts == nil {
		return fmt.Errorf("options cannot be nil")
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(opts.Root)))

	server := &http.Server{
		Addr:    opts.Address,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving release tree", "addr", opts.Address, "root", opts.Root)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := opts.ShutdownTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		log.Info("shutting down file server")
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
