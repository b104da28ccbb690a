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
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/fluxcd/pkg/tar"
)

// unsupportedArchiveSuffixes are archive formats the materializer refuses
// to extract. Plain and non-gzip compressed tarballs are included, the
// extraction library only handles gzip.
var unsupportedArchiveSuffixes = []string{
	".tar", ".tar.bz2", ".tbz2", ".tar.xz", ".txz", ".7z", ".rar",
}

// materialize places the payload of the cached artifact file into the
// release directory: gzipped tarballs and zip archives are extracted,
// unsupported archive formats are rejected, and any other file is copied
// in verbatim. Extraction happens over existing contents, a release
// directory is never deleted here.
func materialize(src, dir string) error {
	name := strings.ToLower(filepath.Base(src))
	for _, suffix := range unsupportedArchiveSuffixes {
		if strings.HasSuffix(name, suffix) {
			return fmt.Errorf("%w: '%s'", ErrUnsupportedArchive, filepath.Base(src))
		}
	}

	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := tar.Untar(f, dir, tar.WithMaxUntarSize(-1)); err != nil {
			return fmt.Errorf("failed to extract '%s': %w", filepath.Base(src), err)
		}
		return nil
	case strings.HasSuffix(name, ".zip"):
		return unzip(src, dir)
	default:
		return copyInto(src, dir)
	}
}

// unzip extracts a zip archive into dir, containing every entry path
// within it.
func unzip(src, dir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open '%s': %w", filepath.Base(src), err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := securejoin.SecureJoin(dir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		if err := extractZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyInto copies the raw artifact file into dir under its own name.
func copyInto(src, dir string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
