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
	"fmt"

	"github.com/deploykit/releaser/digest"
)

// Options contains the configuration settings for one deployment target.
type Options struct {
	// Name is the logical artifact name, used to key the download cache.
	Name string `json:"name"`

	// Location is the raw artifact location string: a direct URL, a
	// repository coordinate or a local file path.
	Location string `json:"location"`

	// Version is the requested artifact version. May be the 'latest'
	// sentinel for repository coordinates.
	Version string `json:"version"`

	// Checksum is the expected checksum of the artifact file. Empty
	// disables verification.
	Checksum string `json:"checksum"`

	// DeployRoot is the deploy target root directory.
	DeployRoot string `json:"deployRoot"`

	// CacheRoot is the directory cached artifact downloads are kept in.
	CacheRoot string `json:"cacheRoot"`

	// Keep is the number of previous releases retained after a deploy.
	Keep int `json:"keep"`

	// Force overrides the deployment decision to true.
	Force bool `json:"force"`

	// EnableMigration runs the migrate hook slots during a deploy.
	EnableMigration bool `json:"enableMigration"`

	// SharedDirs are the names of directories under shared/ symlinked
	// into every release.
	SharedDirs []string `json:"sharedDirs"`

	// Owner and Group own the directories and symlinks the deployer
	// creates. Empty leaves ownership untouched.
	Owner string `json:"owner"`
	Group string `json:"group"`

	// DigestAlgo is the hashing algorithm used for manifests and bare
	// hex checksums.
	DigestAlgo string `json:"digestAlgo"`
}

// Validate checks the options for completeness.
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if o.Location == "" {
		return fmt.Errorf("artifact location cannot be empty")
	}
	if o.DeployRoot == "" {
		return fmt.Errorf("deploy root cannot be empty")
	}
	if o.Keep < 0 {
		return fmt.Errorf("keep count cannot be negative")
	}
	if _, err := digest.AlgorithmForName(o.DigestAlgo); err != nil {
		return fmt.Errorf("invalid digest algorithm: %w", err)
	}
	return nil
}
