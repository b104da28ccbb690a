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

// Package version orders artifact version strings so the 'latest' sentinel
// can be resolved against the versions a repository advertises.
package version

import (
	"errors"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrNoVersions is returned by Latest when no parseable versions exist.
var ErrNoVersions = errors.New("no versions available")

// Parse parses a version string into a semver.Version. The validation is
// looser than the official semver spec, allowing a 'v' prefix and
// 0-prefixed numbers in the major, minor and patch segments
// (e.g. v2025.02.03-rc.1 is considered valid).
func Parse(v string) (*semver.Version, error) {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) != 3 {
		return nil, semver.ErrInvalidSemVer
	}
	return semver.NewVersion(v)
}

// Sort filters out strings that do not parse as versions and sorts the
// remainder in descending order, preserving the original spelling.
func Sort(vs []string) []string {
	var versions []*semver.Version
	for _, v := range vs {
		if pv, err := Parse(v); err == nil {
			versions = append(versions, pv)
		}
	}
	sort.Sort(sort.Reverse(semver.Collection(versions)))
	sorted := make([]string, 0, len(versions))
	for _, v := range versions {
		sorted = append(sorted, v.Original())
	}
	return sorted
}

// Latest returns the highest version among the given strings.
func Latest(vs []string) (string, error) {
	sorted := Sort(vs)
	if len(sorted) == 0 {
		return "", ErrNoVersions
	}
	return sorted[0], nil
}
