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

// Package fetch retrieves versioned artifacts from direct URLs, binary
// repositories and the local filesystem through a single contract. The
// location string is classified once, the fetch path is dispatched on the
// resulting kind, and every path is idempotent: a cached file whose
// checksum still matches is never retrieved again.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"

	intdigest "github.com/deploykit/releaser/digest"
	"github.com/deploykit/releaser/location"
	"github.com/deploykit/releaser/version"
)

var (
	// ErrChecksumMismatch is returned when a retrieved file does not match
	// the checksum advertised by the artifact spec.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrLatestUnsupported is returned when the 'latest' version sentinel
	// is requested for a location kind that has no resolution mechanism.
	ErrLatestUnsupported = errors.New("cannot resolve 'latest' for a direct URL location")

	// ErrEmptyVersion is returned when no version can be determined for
	// the artifact. Only repository coordinates carry their own version.
	ErrEmptyVersion = errors.New("artifact version cannot be empty")

	// ErrFileNotFound signals a 404 response from the artifact server.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoRepositoryClient is returned when a repository coordinate is
	// used without a configured repository client.
	ErrNoRepositoryClient = errors.New("no repository client configured")
)

// ArtifactSpec is the immutable description of the artifact to retrieve.
type ArtifactSpec struct {
	// Name is the logical artifact name, used to key the download cache.
	Name string
	// Location is the raw artifact location string.
	Location string
	// Version is the requested version, possibly the 'latest' sentinel.
	Version string
	// Checksum is the expected content checksum of the artifact file,
	// either a bare hex string for the configured algorithm or a
	// '<algo>:<hex>' digest. Empty disables verification.
	Checksum string
}

// Resolved is an ArtifactSpec after location classification and version
// resolution. All fields are concrete.
type Resolved struct {
	Spec     ArtifactSpec
	Location location.Location
	// Version is the concrete version, never 'latest'.
	Version string
	// Filename is the file name the artifact is cached under.
	Filename string
}

// RepositoryClient pulls artifacts from a binary repository and lists the
// versions it holds for a coordinate.
type RepositoryClient interface {
	// Pull retrieves the artifact identified by the coordinate into the
	// file at dest.
	Pull(ctx context.Context, c location.Coordinate, dest string) error
	// ListVersions returns all versions the repository advertises for the
	// given group and artifact.
	ListVersions(ctx context.Context, group, artifact string) ([]string, error)
}

// Fetcher retrieves artifacts. The HTTP client retries with backoff when
// the file server is offline.
type Fetcher struct {
	httpClient      *retryablehttp.Client
	repo            RepositoryClient
	algo            digest.Algorithm
	maxDownloadSize int
	log             logr.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRetries sets the maximum number of HTTP retries.
func WithRetries(retries int) Option {
	return func(f *Fetcher) {
		f.httpClient.RetryMax = retries
	}
}

// WithMaxDownloadSize caps the size of HTTP downloads in bytes.
func WithMaxDownloadSize(size int) Option {
	return func(f *Fetcher) {
		f.maxDownloadSize = size
	}
}

// WithRepositoryClient sets the client used for repository coordinates.
func WithRepositoryClient(c RepositoryClient) Option {
	return func(f *Fetcher) {
		f.repo = c
	}
}

// WithDigestAlgorithm sets the algorithm bare hex checksums are assumed
// to use.
func WithDigestAlgorithm(algo digest.Algorithm) Option {
	return func(f *Fetcher) {
		f.algo = algo
	}
}

// WithLogger sets the logger. Only HTTP retry errors are logged.
func WithLogger(log logr.Logger) Option {
	return func(f *Fetcher) {
		f.log = log
		f.httpClient.Logger = newErrorLogger(log)
	}
}

// New returns a Fetcher with the retryable HTTP client configured.
func New(opts ...Option) *Fetcher {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = 5 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = 3
	httpClient.Logger = nil

	f := &Fetcher{
		httpClient: httpClient,
		algo:       intdigest.Canonical,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolve classifies the spec location and resolves the 'latest' version
// sentinel. Requesting 'latest' for a direct URL fails before any network
// access, as no resolution mechanism exists for that kind.
func (f *Fetcher) Resolve(ctx context.Context, spec ArtifactSpec) (Resolved, error) {
	loc, err := location.Parse(spec.Location)
	if err != nil {
		return Resolved{}, err
	}

	v := spec.Version
	if v == "" && loc.Kind == location.KindRepository {
		v = loc.Coordinate.Version
	}

	if location.IsLatest(v) {
		switch loc.Kind {
		case location.KindHTTP:
			return Resolved{}, ErrLatestUnsupported
		case location.KindRepository:
			if f.repo == nil {
				return Resolved{}, ErrNoRepositoryClient
			}
			vs, err := f.repo.ListVersions(ctx, loc.Coordinate.Group, loc.Coordinate.Artifact)
			if err != nil {
				return Resolved{}, fmt.Errorf("failed to list versions for '%s:%s': %w",
					loc.Coordinate.Group, loc.Coordinate.Artifact, err)
			}
			if v, err = version.Latest(vs); err != nil {
				return Resolved{}, fmt.Errorf("failed to resolve 'latest' for '%s:%s': %w",
					loc.Coordinate.Group, loc.Coordinate.Artifact, err)
			}
		}
	}

	// A version must be concrete by now: an empty version would collapse
	// the release directory onto the releases dir itself downstream.
	if v == "" {
		return Resolved{}, fmt.Errorf("%w for '%s'", ErrEmptyVersion, spec.Location)
	}

	if loc.Kind == location.KindRepository {
		loc.Coordinate.Version = v
	}

	return Resolved{
		Spec:     spec,
		Location: loc,
		Version:  v,
		Filename: loc.Filename(),
	}, nil
}

// Fetch retrieves the resolved artifact into destDir and returns the path
// of the cached file. Fetching is idempotent: when the destination file
// already exists with a matching checksum no retrieval happens.
func (f *Fetcher) Fetch(ctx context.Context, r Resolved, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, r.Filename)

	if r.Spec.Checksum != "" {
		if ok, err := f.fileMatchesChecksum(dest, r.Spec.Checksum); err != nil {
			return "", err
		} else if ok {
			f.log.V(1).Info("artifact already cached", "path", dest)
			return dest, nil
		}
	}

	switch r.Location.Kind {
	case location.KindHTTP:
		if err := f.fetchHTTP(ctx, r, dest); err != nil {
			return "", err
		}
	case location.KindRepository:
		if err := f.fetchRepository(ctx, r, dest); err != nil {
			return "", err
		}
	case location.KindLocal:
		if err := copyFile(r.Location.Path, dest); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: '%s'", location.ErrUnresolvable, r.Spec.Location)
	}

	return dest, nil
}

// fetchRepository delegates retrieval of a coordinate to the repository
// client and verifies the advertised checksum afterwards.
func (f *Fetcher) fetchRepository(ctx context.Context, r Resolved, dest string) error {
	if f.repo == nil {
		return ErrNoRepositoryClient
	}
	if err := f.repo.Pull(ctx, r.Location.Coordinate, dest); err != nil {
		return fmt.Errorf("failed to pull '%s': %w", r.Location.Coordinate, err)
	}
	if r.Spec.Checksum != "" {
		return f.verifyChecksum(dest, r.Spec.Checksum)
	}
	return nil
}

// fileMatchesChecksum reports whether the file at path exists and matches
// the given checksum.
func (f *Fetcher) fileMatchesChecksum(path, checksum string) (bool, error) {
	want, err := parseChecksum(f.algo, checksum)
	if err != nil {
		return false, err
	}
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer fh.Close()

	got, err := want.Algorithm().FromReader(fh)
	if err != nil {
		return false, err
	}
	return got == want, nil
}

// verifyChecksum fails with ErrChecksumMismatch when the file at path does
// not match the given checksum.
func (f *Fetcher) verifyChecksum(path, checksum string) error {
	ok, err := f.fileMatchesChecksum(path, checksum)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: file '%s' does not match '%s'", ErrChecksumMismatch, path, checksum)
	}
	return nil
}

// parseChecksum interprets checksum as a '<algo>:<hex>' digest, or as a
// bare hex string for the given algorithm.
func parseChecksum(algo digest.Algorithm, checksum string) (digest.Digest, error) {
	if strings.Contains(checksum, ":") {
		d, err := digest.Parse(checksum)
		if err != nil {
			return "", fmt.Errorf("invalid checksum '%s': %w", checksum, err)
		}
		return d, nil
	}
	d := digest.NewDigestFromEncoded(algo, checksum)
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("invalid checksum '%s': %w", checksum, err)
	}
	return d, nil
}

// copyFile copies src to dest verbatim through a temp file in the
// destination directory followed by a rename.
func copyFile(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open local artifact: %w", err)
	}
	defer in.Close()

	tf, err := os.CreateTemp(filepath.Dir(dest), "fetch.*.tmp")
	if err != nil {
		return err
	}
	tfName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tfName)
		}
	}()

	if _, err := io.Copy(tf, in); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tfName, 0o644); err != nil {
		return err
	}
	return os.Rename(tfName, dest)
}
