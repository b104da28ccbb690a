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

// Package store owns the on-disk release layout of a deploy target:
// versioned release directories under 'releases/', the 'current' symlink
// marking the live release, the 'shared/' tree linked into releases, and
// the bounded history of previous releases.
//
// The layout per deploy root is:
//
//	<root>/
//	  releases/<version>/   one directory per installed version
//	  current               symlink to releases/<version>, atomically repointed
//	  shared/<name>/        long-lived directories symlinked into releases
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/deploykit/releaser/manifest"
)

const (
	// ReleasesDirName is the directory under the deploy root holding one
	// subdirectory per installed version.
	ReleasesDirName = "releases"
	// SharedDirName is the directory under the deploy root holding
	// long-lived directories symlinked into each release.
	SharedDirName = "shared"
	// CurrentLinkName is the symlink under the deploy root whose target
	// is the live release directory.
	CurrentLinkName = "current"
)

// ReleaseStore manages the release directories, the current pointer and
// the cached retrieval artifacts of one artifact on one deploy target.
type ReleaseStore struct {
	// Root is the deploy root directory.
	Root string
	// CacheRoot is the directory holding cached retrieval artifacts,
	// laid out as <CacheRoot>/<Name>/<version>/<filename>.
	CacheRoot string
	// Name is the logical artifact name.
	Name string
}

// New returns a ReleaseStore for the given deploy root, cache root and
// artifact name.
func New(root, cacheRoot, name string) *ReleaseStore {
	return &ReleaseStore{Root: root, CacheRoot: cacheRoot, Name: name}
}

// ReleasesDir returns the path of the releases directory.
func (s *ReleaseStore) ReleasesDir() string {
	return filepath.Join(s.Root, ReleasesDirName)
}

// SharedDir returns the path of the shared directory.
func (s *ReleaseStore) SharedDir() string {
	return filepath.Join(s.Root, SharedDirName)
}

// CurrentLink returns the path of the current symlink.
func (s *ReleaseStore) CurrentLink() string {
	return filepath.Join(s.Root, CurrentLinkName)
}

// ReleasePath returns the secure path of the release directory for the
// given version (that is: contained within the releases directory). An
// empty version is rejected, it would resolve to the releases directory
// itself.
func (s *ReleaseStore) ReleasePath(version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("release version cannot be empty")
	}
	p, err := securejoin.SecureJoin(s.ReleasesDir(), version)
	if err != nil {
		return "", fmt.Errorf("invalid release version '%s': %w", version, err)
	}
	return p, nil
}

// ManifestPath returns the path of the manifest file for the given
// version.
func (s *ReleaseStore) ManifestPath(version string) (string, error) {
	p, err := s.ReleasePath(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(p, manifest.Filename), nil
}

// CachePath returns the directory cached retrieval artifacts of the given
// version are stored in.
func (s *ReleaseStore) CachePath(version string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("cache version cannot be empty")
	}
	p, err := securejoin.SecureJoin(s.CacheRoot, filepath.Join(s.Name, version))
	if err != nil {
		return "", fmt.Errorf("invalid cache version '%s': %w", version, err)
	}
	return p, nil
}

// CurrentVersion returns the version the current symlink points at, or an
// empty string if no current release exists.
func (s *ReleaseStore) CurrentVersion() (string, error) {
	target, err := os.Readlink(s.CurrentLink())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read current link: %w", err)
	}
	return filepath.Base(target), nil
}

// PreviousVersions returns the versions of all retained non-current
// releases, sorted by directory modification time ascending.
func (s *ReleaseStore) PreviousVersions() ([]string, error) {
	entries, err := os.ReadDir(s.ReleasesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	current, err := s.CurrentVersion()
	if err != nil {
		return nil, err
	}

	type release struct {
		version string
		modTime int64
	}
	var releases []release
	for _, e := range entries {
		if !e.IsDir() || e.Name() == current {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return nil, err
		}
		releases = append(releases, release{version: e.Name(), modTime: fi.ModTime().UnixNano()})
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].modTime < releases[j].modTime })

	versions := make([]string, 0, len(releases))
	for _, r := range releases {
		versions = append(versions, r.version)
	}
	return versions, nil
}

// Promote atomically repoints the current symlink at the release
// directory of the given version. External observers never see a missing
// link: the new link is created under a temp name and renamed over the
// old one.
func (s *ReleaseStore) Promote(version string) error {
	target, err := s.ReleasePath(version)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(target); err != nil || !fi.IsDir() {
		return fmt.Errorf("cannot promote '%s': no release directory at %s", version, target)
	}

	link := s.CurrentLink()
	tmpLink := link + ".tmp"

	if err := os.Remove(tmpLink); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, link); err != nil {
		return err
	}
	return nil
}
