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

package testserver

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"os"
	"testing"

	. "github.com/onsi/gomega"

	intdigest "github.com/deploykit/releaser/digest"
)

func TestArtifactServer(t *testing.T) {
	g := NewWithT(t)

	srv, err := NewTempArtifactServer()
	g.Expect(err).ToNot(HaveOccurred())
	defer os.RemoveAll(srv.Root())
	srv.Start()
	defer srv.Stop()

	files := []File{
		{"bin/app", "app bits"},
		{"conf/app.yml", "key: value"},
	}
	checksum, err := srv.ArtifactFromFiles("app-1.0.0.tgz", files)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(checksum).ToNot(BeEmpty())

	url, err := srv.URLForFile("app-1.0.0.tgz")
	g.Expect(err).ToNot(HaveOccurred())

	resp, err := http.Get(url)
	g.Expect(err).ToNot(HaveOccurred())
	defer resp.Body.Close()
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))

	// The served bytes must match the returned checksum.
	body, err := io.ReadAll(resp.Body)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(intdigest.Canonical.FromBytes(body).Encoded()).To(Equal(checksum))

	// The tarball must contain all the expected files.
	gzRead, err := gzip.NewReader(bytes.NewReader(body))
	g.Expect(err).ToNot(HaveOccurred())
	tarRead := tar.NewReader(gzRead)

	var names []string
	for {
		cur, err := tarRead.Next()
		if err == io.EOF {
			break
		}
		g.Expect(err).ToNot(HaveOccurred())
		if cur.Typeflag != tar.TypeReg {
			continue
		}
		names = append(names, cur.Name)
	}
	g.Expect(names).To(ConsistOf("bin/app", "conf/app.yml"))
}

func TestArtifactServer_RawFile(t *testing.T) {
	g := NewWithT(t)

	srv, err := NewTempArtifactServer()
	g.Expect(err).ToNot(HaveOccurred())
	defer os.RemoveAll(srv.Root())
	srv.Start()
	defer srv.Stop()

	checksum, err := srv.RawFile("app-1.0.0.jar", "jar bits")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(checksum).To(Equal(intdigest.Canonical.FromString("jar bits").Encoded()))
}
