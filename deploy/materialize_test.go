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

package deploy

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func writeTgz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for name, body := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o600, Size: int64(len(body))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMaterialize(t *testing.T) {
	t.Run("extracts gzipped tarballs", func(t *testing.T) {
		g := NewWithT(t)
		src := filepath.Join(t.TempDir(), "app-1.0.0.tar.gz")
		writeTgz(t, src, map[string]string{"bin/app": "app bits", "README": "readme"})

		dir := t.TempDir()
		g.Expect(materialize(src, dir)).To(Succeed())
		g.Expect(filepath.Join(dir, "bin", "app")).To(BeAnExistingFile())
		g.Expect(filepath.Join(dir, "README")).To(BeAnExistingFile())
	})

	t.Run("extracts zip archives", func(t *testing.T) {
		g := NewWithT(t)
		src := filepath.Join(t.TempDir(), "app-1.0.0.zip")
		writeZip(t, src, map[string]string{"bin/app": "app bits"})

		dir := t.TempDir()
		g.Expect(materialize(src, dir)).To(Succeed())

		b, err := os.ReadFile(filepath.Join(dir, "bin", "app"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(string(b)).To(Equal("app bits"))
	})

	t.Run("copies raw files verbatim", func(t *testing.T) {
		g := NewWithT(t)
		src := filepath.Join(t.TempDir(), "app-1.0.0.jar")
		g.Expect(os.WriteFile(src, []byte("jar bits"), 0o644)).To(Succeed())

		dir := t.TempDir()
		g.Expect(materialize(src, dir)).To(Succeed())

		b, err := os.ReadFile(filepath.Join(dir, "app-1.0.0.jar"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(string(b)).To(Equal("jar bits"))
	})

	t.Run("overwrites existing contents without deleting extras", func(t *testing.T) {
		g := NewWithT(t)
		src := filepath.Join(t.TempDir(), "app-1.0.0.tar.gz")
		writeTgz(t, src, map[string]string{"bin/app": "app bits"})

		dir := t.TempDir()
		g.Expect(os.MkdirAll(filepath.Join(dir, "bin"), 0o750)).To(Succeed())
		g.Expect(os.WriteFile(filepath.Join(dir, "bin", "app"), []byte("corrupted"), 0o644)).To(Succeed())
		g.Expect(os.WriteFile(filepath.Join(dir, "leftover"), []byte("x"), 0o644)).To(Succeed())

		g.Expect(materialize(src, dir)).To(Succeed())

		b, err := os.ReadFile(filepath.Join(dir, "bin", "app"))
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(string(b)).To(Equal("app bits"))
		g.Expect(filepath.Join(dir, "leftover")).To(BeAnExistingFile())
	})

	t.Run("rejects unsupported archive extensions", func(t *testing.T) {
		for _, name := range []string{"app.tar", "app.tar.bz2", "app.7z"} {
			g := NewWithT(t)
			src := filepath.Join(t.TempDir(), name)
			g.Expect(os.WriteFile(src, []byte("x"), 0o644)).To(Succeed())

			err := materialize(src, t.TempDir())
			g.Expect(err).To(MatchError(ErrUnsupportedArchive))
		}
	})
}
