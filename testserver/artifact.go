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
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	intdigest "github.com/deploykit/releaser/digest"
)

// NewTempArtifactServer returns an ArtifactServer with a newly created
// temp dir as the artifact docroot.
func NewTempArtifactServer() (*ArtifactServer, error) {
	server, err := NewTempHTTPServer()
	if err != nil {
		return nil, err
	}
	return &ArtifactServer{server}, nil
}

// ArtifactServer is an HTTP artifact server for testing purposes. It
// offers utilities to generate tarball and raw file artifacts to be
// served to fetch clients.
type ArtifactServer struct {
	*HTTPServer
}

// File holds the name and string contents of an artifact file.
type File struct {
	Name string
	Body string
}

// ArtifactFromFiles creates a gzipped tarball named fileName from the
// given files in the docroot and returns the hex-encoded checksum of the
// artifact.
func (s *ArtifactServer) ArtifactFromFiles(fileName string, files []File) (string, error) {
	f, err := os.Create(filepath.Join(s.docroot, fileName))
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := intdigest.Canonical.Digester()
	mw := io.MultiWriter(d.Hash(), f)
	gw := gzip.NewWriter(mw)
	tw := tar.NewWriter(gw)

	for _, file := range files {
		hdr := &tar.Header{
			Name: file.Name,
			Mode: 0o600,
			Size: int64(len(file.Body)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", err
		}
		if _, err := tw.Write([]byte(file.Body)); err != nil {
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}
	return d.Digest().Encoded(), nil
}

// RawFile writes the given body as a plain file artifact in the docroot
// and returns its hex-encoded checksum.
func (s *ArtifactServer) RawFile(fileName, body string) (string, error) {
	path := filepath.Join(s.docroot, fileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", err
	}
	return intdigest.Canonical.FromString(body).Encoded(), nil
}

// ArtifactFromDir creates a gzipped tarball from the source directory into
// the docroot under destination and returns the hex-encoded checksum of
// the artifact.
func (s *ArtifactServer) ArtifactFromDir(source, destination string) (string, error) {
	if f, err := os.Stat(source); os.IsNotExist(err) || !f.IsDir() {
		return "", fmt.Errorf("invalid source path: %s", source)
	}
	f, err := os.Create(filepath.Join(s.docroot, destination))
	if err != nil {
		return "", err
	}
	defer f.Close()

	d := intdigest.Canonical.Digester()
	mw := io.MultiWriter(d.Hash(), f)
	gw := gzip.NewWriter(mw)
	tw := tar.NewWriter(gw)

	if err := filepath.Walk(source, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		header, err := tar.FileInfoHeader(fi, p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, in); err != nil {
			in.Close()
			return err
		}
		return in.Close()
	}); err != nil {
		return "", err
	}

	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}
	return d.Digest().Encoded(), nil
}

// URLForFile returns the URL the given file can be reached at, or an error
// if the server has not been started.
func (s *ArtifactServer) URLForFile(file string) (string, error) {
	if s.URL() == "" {
		return "", errors.New("server must be started to be able to determine the URL of the given file")
	}
	return fmt.Sprintf("%s/%s", s.URL(), file), nil
}
