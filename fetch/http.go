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

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
)

// fetchHTTP downloads the artifact from a direct URL into the file at
// dest, verifying the advertised checksum before the file is moved into
// place. If the file server responds with 5xx errors the download is
// retried. A 404 response yields ErrFileNotFound.
func (f *Fetcher) fetchHTTP(ctx context.Context, r Resolved, dest string) (err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.Location.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create a new request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download artifact, error: %w", err)
	}
	defer resp.Body.Close()

	if code := resp.StatusCode; code != http.StatusOK {
		if code == http.StatusNotFound {
			return ErrFileNotFound
		}
		return fmt.Errorf("failed to download artifact from %s, status: %s", r.Location.URL, resp.Status)
	}

	tf, err := os.CreateTemp(filepath.Dir(dest), "fetch.*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tfName := tf.Name()
	defer func() {
		tf.Close()
		os.Remove(tfName)
	}()

	// Save temporary file, but limit the download to the max download
	// size. Headers can lie, so instead of trusting resp.ContentLength,
	// error in case there are still bytes left past the limit. Note that
	// discarding of remaining bytes in resp.Body is a requirement for Go
	// to effectively reuse HTTP connections.
	if f.maxDownloadSize > 0 {
		_, err = io.Copy(tf, io.LimitReader(resp.Body, int64(f.maxDownloadSize)))
		n, _ := io.Copy(io.Discard, resp.Body)
		if n > 0 {
			return fmt.Errorf("artifact is %d bytes greater than the max download size of %d bytes", n, f.maxDownloadSize)
		}
	} else {
		_, err = io.Copy(tf, resp.Body)
	}
	if err != nil {
		return fmt.Errorf("failed to copy temp contents: %w", err)
	}
	if err := tf.Close(); err != nil {
		return err
	}

	// A checksum is the only idempotency means for direct URLs, so verify
	// it before the file becomes visible at its destination.
	if r.Spec.Checksum != "" {
		if err := f.verifyChecksum(tfName, r.Spec.Checksum); err != nil {
			return err
		}
	}

	if err := os.Chmod(tfName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tfName, dest); err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}
