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

package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestEngine_Generate(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"bin/app":     "binary bits",
		"conf/app.ym": "key: value",
		"README":      "readme",
		Filename:      "files: {}",
	})

	e := NewEngine("")
	m, err := e.Generate(dir)
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(m).To(HaveLen(3))
	g.Expect(m).To(HaveKey("bin/app"))
	g.Expect(m).To(HaveKey("conf/app.ym"))
	g.Expect(m).To(HaveKey("README"))
	g.Expect(m).ToNot(HaveKey(Filename))

	// Identical contents in a second tree must produce identical digests.
	other := t.TempDir()
	writeFiles(t, other, map[string]string{"bin/app": "binary bits"})
	m2, err := e.Generate(other)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(m2["bin/app"]).To(Equal(m["bin/app"]))
}

func TestDiff(t *testing.T) {
	base := Manifest{
		"bin/app": "sha256:aaa",
		"README":  "sha256:bbb",
	}

	tests := []struct {
		name string
		a    Manifest
		b    Manifest
		want bool
	}{
		{
			name: "identical manifests",
			a:    base,
			b:    Manifest{"bin/app": "sha256:aaa", "README": "sha256:bbb"},
			want: false,
		},
		{
			name: "changed digest",
			a:    base,
			b:    Manifest{"bin/app": "sha256:ccc", "README": "sha256:bbb"},
			want: true,
		},
		{
			name: "missing entry",
			a:    base,
			b:    Manifest{"bin/app": "sha256:aaa"},
			want: true,
		},
		{
			name: "extra entries in b are not detected",
			a:    base,
			b: Manifest{
				"bin/app": "sha256:aaa",
				"README":  "sha256:bbb",
				"extra":   "sha256:ddd",
			},
			want: false,
		},
		{
			name: "empty a never differs",
			a:    Manifest{},
			b:    Manifest{},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(Diff(tt.a, tt.b)).To(Equal(tt.want))
		})
	}
}

func TestDiff_SelfIsFalse(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a": "1", "b/c": "2"})

	e := NewEngine("")
	m, err := e.Generate(dir)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(Diff(m, m)).To(BeFalse())
}

func TestSaveLoad(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	path := filepath.Join(dir, Filename)

	m := Manifest{
		"bin/app": "sha256:aaa",
		"README":  "sha256:bbb",
	}
	g.Expect(Save(m, path)).To(Succeed())

	got, err := Load(path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got).To(Equal(m))

	// Save overwrites an existing manifest.
	m["bin/app"] = "sha256:ccc"
	g.Expect(Save(m, path)).To(Succeed())
	got, err = Load(path)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(got["bin/app"]).To(Equal("sha256:ccc"))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
	}{
		{
			name: "missing file",
			setup: func(t *testing.T, dir string) string {
				return filepath.Join(dir, Filename)
			},
		},
		{
			name: "malformed file",
			setup: func(t *testing.T, dir string) string {
				path := filepath.Join(dir, Filename)
				if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
					t.Fatal(err)
				}
				return path
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			path := tt.setup(t, t.TempDir())

			_, err := Load(path)
			g.Expect(err).To(HaveOccurred())

			var readErr *ReadError
			g.Expect(errors.As(err, &readErr)).To(BeTrue())
			g.Expect(readErr.Path).To(Equal(path))
		})
	}
}
