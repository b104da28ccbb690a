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

// Package manifest computes and compares per-file content-hash snapshots
// of release directories. A manifest records the digest of every regular
// file in a release and is the ground truth used to detect drift between
// what was deployed and what is currently on disk.
package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	intdigest "github.com/deploykit/releaser/digest"
)

// Filename is the name of the manifest file written inside a release
// directory. The file is always excluded from its own snapshot.
const Filename = "manifest.yaml"

// Manifest maps a file path, relative to the release directory, to the
// digest of its contents. Key order is irrelevant.
type Manifest map[string]string

// ReadError is returned by Load when a manifest file is missing or cannot
// be parsed.
type ReadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read manifest '%s': %s", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error {
	return e.Err
}

// manifestFile is the on-disk representation of a Manifest.
type manifestFile struct {
	Files Manifest `yaml:"files"`
}

// Engine computes, persists and compares manifests using a fixed digest
// algorithm.
type Engine struct {
	algo digest.Algorithm
}

// NewEngine returns an Engine for the given algorithm. An empty algorithm
// defaults to the canonical one.
func NewEngine(algo digest.Algorithm) *Engine {
	if algo == "" {
		algo = intdigest.Canonical
	}
	return &Engine{algo: algo}
}

// Generate walks the given directory and returns a manifest of all regular
// files found under it, keyed by slash-separated relative path. The
// manifest file itself and directory entries are excluded. The result is
// deterministic for identical file contents regardless of traversal order.
func (e *Engine) Generate(dir string) (Manifest, error) {
	m := make(Manifest)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == Filename {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		dig, err := e.algo.FromReader(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to digest '%s': %w", path, err)
		}
		m[rel] = dig.String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate manifest for '%s': %w", dir, err)
	}
	return m, nil
}

// Diff reports whether any entry of a is absent from b or present with a
// different digest. The comparison is deliberately asymmetric: entries
// present in b but absent from a are not detected. Deploy-skip behavior
// depends on this exact semantic.
func Diff(a, b Manifest) bool {
	for path, dig := range a {
		other, ok := b[path]
		if !ok || other != dig {
			return true
		}
	}
	return false
}

// Load reads a persisted manifest from the given path. A missing or
// malformed file yields a *ReadError.
func Load(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	var mf manifestFile
	if err := yaml.Unmarshal(b, &mf); err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	if mf.Files == nil {
		mf.Files = make(Manifest)
	}
	return mf.Files, nil
}

// Save serializes the manifest to the given path, replacing any existing
// file. The write happens through a temp file in the same directory
// followed by a rename.
func Save(m Manifest, path string) (err error) {
	b, err := yaml.Marshal(manifestFile{Files: m})
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}

	tf, err := os.CreateTemp(filepath.Dir(path), "manifest.*.tmp")
	if err != nil {
		return err
	}
	tfName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tfName)
		}
	}()

	if _, err := tf.Write(b); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tfName, 0o644); err != nil {
		return err
	}
	return os.Rename(tfName, path)
}
