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

// Package location classifies artifact location strings into one of three
// retrieval kinds: a direct HTTP(S) URL, a colon-separated repository
// coordinate, or a local filesystem path. Classification happens exactly
// once, everything downstream dispatches on the resulting Kind.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultExtension is assumed for repository coordinates that omit the
// extension segment.
const DefaultExtension = "jar"

// ErrUnresolvable is returned when a location string matches none of the
// supported classifications.
var ErrUnresolvable = errors.New("unresolvable artifact location")

// Kind enumerates the supported artifact location classes.
type Kind int

const (
	// KindHTTP is a direct http:// or https:// URL.
	KindHTTP Kind = iota + 1
	// KindRepository is a colon-separated repository coordinate.
	KindRepository
	// KindLocal is a path to an existing local file.
	KindLocal
)

// String returns a human readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindRepository:
		return "repository"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Coordinate identifies an artifact within a binary repository in the form
// '<group>:<artifact>:<version>[:<extension>]'.
type Coordinate struct {
	Group     string
	Artifact  string
	Version   string
	Extension string
}

// String returns the canonical colon-separated form of the coordinate.
func (c Coordinate) String() string {
	return strings.Join([]string{c.Group, c.Artifact, c.Version, c.Extension}, ":")
}

// Filename returns the file name a repository serves the coordinate as,
// in the form '<artifact>-<version>.<extension>'.
func (c Coordinate) Filename() string {
	return fmt.Sprintf("%s-%s.%s", c.Artifact, c.Version, c.Extension)
}

// Location is the classified form of an artifact location string.
// Exactly one of URL, Coordinate or Path is meaningful, selected by Kind.
type Location struct {
	Kind       Kind
	URL        string
	Coordinate Coordinate
	Path       string
}

// Filename returns the name of the file the location retrieves as.
func (l Location) Filename() string {
	switch l.Kind {
	case KindHTTP:
		u, err := url.Parse(l.URL)
		if err != nil {
			return path.Base(l.URL)
		}
		return path.Base(u.Path)
	case KindRepository:
		return l.Coordinate.Filename()
	case KindLocal:
		return filepath.Base(l.Path)
	default:
		return ""
	}
}

// Parse classifies the raw location string. The resolution order is fixed
// and mutually exclusive: URI scheme first, then repository coordinate,
// then existing local path. A string that parses as a coordinate always
// wins over a path of the same spelling.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrUnresolvable)
	}

	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return Location{Kind: KindHTTP, URL: raw}, nil
	}

	if c, ok := parseCoordinate(raw); ok {
		return Location{Kind: KindRepository, Coordinate: c}, nil
	}

	if fi, err := os.Stat(raw); err == nil && fi.Mode().IsRegular() {
		return Location{Kind: KindLocal, Path: raw}, nil
	}

	return Location{}, fmt.Errorf("%w: '%s' is not a URL, repository coordinate or existing file", ErrUnresolvable, raw)
}

// parseCoordinate interprets raw as '<group>:<artifact>:<version>' with an
// optional fourth extension segment.
func parseCoordinate(raw string) (Coordinate, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Coordinate{}, false
	}
	for _, p := range parts[:3] {
		if p == "" {
			return Coordinate{}, false
		}
	}
	c := Coordinate{
		Group:     parts[0],
		Artifact:  parts[1],
		Version:   parts[2],
		Extension: DefaultExtension,
	}
	if len(parts) == 4 && parts[3] != "" {
		c.Extension = parts[3]
	}
	return c, true
}

// IsLatest reports whether the given version is the case-insensitive
// 'latest' sentinel.
func IsLatest(version string) bool {
	return strings.EqualFold(version, "latest")
}
