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

package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

// mkRelease creates a release directory with a deterministic modification
// time, so ordering does not depend on filesystem timestamp resolution.
func mkRelease(t *testing.T, s *ReleaseStore, version string, age time.Duration) string {
	t.Helper()
	path, err := s.ReleasePath(version)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	ts := time.Now().Add(-age)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReleaseStore_CurrentVersion(t *testing.T) {
	g := NewWithT(t)
	s := New(t.TempDir(), t.TempDir(), "app")

	// No current link yet.
	current, err := s.CurrentVersion()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(current).To(BeEmpty())

	mkRelease(t, s, "1.0.0", 0)
	g.Expect(s.Promote("1.0.0")).To(Succeed())

	current, err = s.CurrentVersion()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(current).To(Equal("1.0.0"))
}

func TestReleaseStore_Promote(t *testing.T) {
	g := NewWithT(t)
	s := New(t.TempDir(), t.TempDir(), "app")

	// Promoting a version without a release directory fails.
	g.Expect(s.Promote("1.0.0")).ToNot(Succeed())

	v1 := mkRelease(t, s, "1.0.0", time.Hour)
	v2 := mkRelease(t, s, "2.0.0", 0)

	g.Expect(s.Promote("1.0.0")).To(Succeed())
	target, err := os.Readlink(s.CurrentLink())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(target).To(Equal(v1))

	// Repointing replaces the link without leaving a temp link behind.
	g.Expect(s.Promote("2.0.0")).To(Succeed())
	target, err = os.Readlink(s.CurrentLink())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(target).To(Equal(v2))
	g.Expect(s.CurrentLink() + ".tmp").ToNot(BeAnExistingFile())
}

func TestReleaseStore_PreviousVersions(t *testing.T) {
	g := NewWithT(t)
	s := New(t.TempDir(), t.TempDir(), "app")

	// No releases directory yet.
	previous, err := s.PreviousVersions()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(previous).To(BeEmpty())

	mkRelease(t, s, "1.0.0", 3*time.Hour)
	mkRelease(t, s, "3.0.0", time.Hour)
	mkRelease(t, s, "2.0.0", 2*time.Hour)
	g.Expect(s.Promote("3.0.0")).To(Succeed())

	// Sorted by modification time ascending, current excluded.
	previous, err = s.PreviousVersions()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(previous).To(Equal([]string{"1.0.0", "2.0.0"}))
}

func TestReleaseStore_Prune(t *testing.T) {
	tests := []struct {
		name        string
		versions    map[string]time.Duration
		current     string
		keep        int
		wantDeleted []string
	}{
		{
			name: "removes the oldest beyond keep",
			versions: map[string]time.Duration{
				"1.0.0": 4 * time.Hour,
				"2.0.0": 3 * time.Hour,
				"3.0.0": 2 * time.Hour,
				"4.0.0": time.Hour,
				"5.0.0": 0,
			},
			current:     "5.0.0",
			keep:        2,
			wantDeleted: []string{"1.0.0", "2.0.0"},
		},
		{
			name: "no-op when previous count within keep",
			versions: map[string]time.Duration{
				"1.0.0": 2 * time.Hour,
				"2.0.0": time.Hour,
			},
			current: "2.0.0",
			keep:    2,
		},
		{
			name: "keep zero removes all previous but never current",
			versions: map[string]time.Duration{
				"1.0.0": 2 * time.Hour,
				"2.0.0": time.Hour,
			},
			current:     "2.0.0",
			keep:        0,
			wantDeleted: []string{"1.0.0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			s := New(t.TempDir(), t.TempDir(), "app")

			for v, age := range tt.versions {
				mkRelease(t, s, v, age)
				cache, err := s.CachePath(v)
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(os.MkdirAll(cache, 0o755)).To(Succeed())
				g.Expect(os.WriteFile(filepath.Join(cache, "artifact.tgz"), []byte("x"), 0o644)).To(Succeed())
			}
			g.Expect(s.Promote(tt.current)).To(Succeed())

			deleted, err := s.Prune(tt.keep)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(deleted).To(Equal(tt.wantDeleted))

			for _, v := range tt.wantDeleted {
				path, err := s.ReleasePath(v)
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(path).ToNot(BeADirectory())
				cache, err := s.CachePath(v)
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(cache).ToNot(BeADirectory())
			}

			// The current release always survives.
			currentPath, err := s.ReleasePath(tt.current)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(currentPath).To(BeADirectory())
		})
	}
}

func TestReleaseStore_EmptyVersionRejected(t *testing.T) {
	g := NewWithT(t)
	s := New(t.TempDir(), t.TempDir(), "app")

	// An empty version would degenerate to the releases dir itself.
	_, err := s.ReleasePath("")
	g.Expect(err).To(HaveOccurred())

	_, err = s.CachePath("")
	g.Expect(err).To(HaveOccurred())

	g.Expect(s.Promote("")).ToNot(Succeed())
}

func TestReleaseStore_ReleasePathContained(t *testing.T) {
	g := NewWithT(t)
	s := New(t.TempDir(), t.TempDir(), "app")

	// Path traversal in a version string stays inside the releases dir.
	p, err := s.ReleasePath("../../etc")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(p).To(HavePrefix(s.ReleasesDir()))
}
