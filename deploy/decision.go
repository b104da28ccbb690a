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
	"slices"

	"github.com/deploykit/releaser/manifest"
)

// ReleaseStore is the contract the decision and orchestration logic
// consumes. It isolates all filesystem queries so the algorithms can be
// exercised against any implementation of the release layout.
type ReleaseStore interface {
	ReleasePath(version string) (string, error)
	ManifestPath(version string) (string, error)
	CachePath(version string) (string, error)
	SharedDir() string
	CurrentLink() string
	CurrentVersion() (string, error)
	PreviousVersions() ([]string, error)
	Promote(version string) error
	Prune(keep int) ([]string, error)
}

// Decision is the outcome of the four-branch deployment decision.
type Decision struct {
	// MustDeploy reports whether the requested version has to be
	// materialized.
	MustDeploy bool
	// Drifted reports whether the decision was driven by a manifest
	// mismatch between a saved manifest and the on-disk contents.
	Drifted bool
	// Reason names the branch that produced the decision.
	Reason string
}

// Decider decides whether deploying a requested version is actually
// required, comparing the requested version, the currently active version
// and the file-content manifests of retained releases.
type Decider struct {
	store  ReleaseStore
	engine *manifest.Engine
}

// NewDecider returns a Decider over the given store and manifest engine.
func NewDecider(store ReleaseStore, engine *manifest.Engine) *Decider {
	return &Decider{store: store, engine: engine}
}

// Decide evaluates the four mutually exclusive decision branches in fixed
// order:
//
//  1. no current release exists: deploy (first-time install)
//  2. requested differs from current and was never retained: deploy
//  3. requested differs from current but is retained: deploy only when
//     the retained release drifted from its saved manifest
//  4. requested equals current: deploy only when the live release
//     drifted from its saved manifest
func (d *Decider) Decide(version string) (Decision, error) {
	current, err := d.store.CurrentVersion()
	if err != nil {
		return Decision{}, err
	}

	if current == "" {
		return Decision{MustDeploy: true, Reason: "no current release"}, nil
	}

	if version != current {
		previous, err := d.store.PreviousVersions()
		if err != nil {
			return Decision{}, err
		}
		if !slices.Contains(previous, version) {
			return Decision{MustDeploy: true, Reason: "version never deployed"}, nil
		}
		changed, err := d.drifted(version)
		if err != nil {
			return Decision{}, err
		}
		if changed {
			return Decision{MustDeploy: true, Drifted: true, Reason: "retained release drifted"}, nil
		}
		return Decision{Reason: "retained release intact"}, nil
	}

	changed, err := d.drifted(current)
	if err != nil {
		return Decision{}, err
	}
	if changed {
		return Decision{MustDeploy: true, Drifted: true, Reason: "current release drifted"}, nil
	}
	return Decision{Reason: "current release up to date"}, nil
}

// drifted reports whether the on-disk contents of the given retained
// version no longer match its saved manifest.
func (d *Decider) drifted(version string) (bool, error) {
	manifestPath, err := d.store.ManifestPath(version)
	if err != nil {
		return false, err
	}
	saved, err := manifest.Load(manifestPath)
	if err != nil {
		return false, err
	}

	releasePath, err := d.store.ReleasePath(version)
	if err != nil {
		return false, err
	}
	regenerated, err := d.engine.Generate(releasePath)
	if err != nil {
		return false, err
	}
	return manifest.Diff(saved, regenerated), nil
}
