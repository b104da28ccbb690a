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

import "github.com/deploykit/releaser/fetch"

// RunContext is the immutable state of one orchestration run, built once
// after version resolution and passed by value into every hook. No
// component mutates shared ambient state.
type RunContext struct {
	// Spec is the artifact spec the run was started with.
	Spec fetch.ArtifactSpec
	// Version is the concrete version being deployed, never 'latest'.
	Version string
	// DeployRoot is the deploy target root directory.
	DeployRoot string
	// ReleasePath is the release directory of Version.
	ReleasePath string
	// SharedPath is the shared directory of the deploy root.
	SharedPath string
	// CurrentLink is the path of the current symlink.
	CurrentLink string
	// CachedArtifact is the path of the retrieved artifact file. Empty
	// until retrieval has happened.
	CachedArtifact string
	// MustDeploy reports the decision outcome of the run, including a
	// forced override.
	MustDeploy bool
	// Forced reports whether the operator forced the deployment.
	Forced bool
}
