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

// Package deploy decides whether a requested artifact version must be
// installed and sequences the end-to-end deployment of a release: prune
// old releases, retrieve the artifact, materialize the payload, link
// shared resources, run lifecycle hooks, flip the current pointer and
// record the release manifest.
//
// A run is single-threaded and fully synchronous. Every step is
// idempotent, so the unit of retry is re-running the whole orchestration.
// A file lock on the deploy root guards against concurrent runs on the
// same target.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluxcd/pkg/lockedfile"
	"github.com/go-logr/logr"

	"github.com/deploykit/releaser/digest"
	"github.com/deploykit/releaser/fetch"
	"github.com/deploykit/releaser/manifest"
	"github.com/deploykit/releaser/store"
)

// LockFileName is the advisory lock file created under the deploy root
// for the duration of a run.
const LockFileName = ".releaser.lock"

// Deployer sequences the deployment of one artifact onto one deploy
// target.
type Deployer struct {
	opts    Options
	store   ReleaseStore
	fetcher *fetch.Fetcher
	engine  *manifest.Engine
	decider *Decider
	sys     System
	hooks   Hooks
	log     logr.Logger
}

// DeployerOption configures a Deployer.
type DeployerOption func(*Deployer)

// WithStore substitutes the release store.
func WithStore(s ReleaseStore) DeployerOption {
	return func(d *Deployer) {
		d.store = s
	}
}

// WithFetcher substitutes the artifact fetcher.
func WithFetcher(f *fetch.Fetcher) DeployerOption {
	return func(d *Deployer) {
		d.fetcher = f
	}
}

// WithSystem substitutes the host capability surface.
func WithSystem(sys System) DeployerOption {
	return func(d *Deployer) {
		d.sys = sys
	}
}

// WithHooks registers the lifecycle hook slots.
func WithHooks(h Hooks) DeployerOption {
	return func(d *Deployer) {
		d.hooks = h
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) DeployerOption {
	return func(d *Deployer) {
		d.log = log
	}
}

// NewDeployer validates the options and assembles a Deployer with
// OS-backed defaults for everything not substituted.
func NewDeployer(opts Options, deployerOpts ...DeployerOption) (*Deployer, error) {
	if opts.DigestAlgo == "" {
		opts.DigestAlgo = defaultDigestAlgo
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	algo, err := digest.AlgorithmForName(opts.DigestAlgo)
	if err != nil {
		return nil, err
	}

	d := &Deployer{
		opts:   opts,
		engine: manifest.NewEngine(algo),
		sys:    NewOSSystem(),
		log:    logr.Discard(),
	}
	for _, opt := range deployerOpts {
		opt(d)
	}
	if d.store == nil {
		d.store = store.New(opts.DeployRoot, opts.CacheRoot, opts.Name)
	}
	if d.fetcher == nil {
		d.fetcher = fetch.New(
			fetch.WithDigestAlgorithm(algo),
			fetch.WithLogger(d.log),
		)
	}
	d.decider = NewDecider(d.store, d.engine)
	return d, nil
}

// Run executes one deployment. The run holds an advisory file lock on the
// deploy root, assuming any scheduler above it provides no mutual
// exclusion of its own. Failures unwind the run immediately, already
// completed side effects are left in place.
func (d *Deployer) Run(ctx context.Context) error {
	if err := d.sys.EnsureDirectory(d.opts.DeployRoot, d.opts.Owner, d.opts.Group, 0o755); err != nil {
		return fmt.Errorf("failed to prepare deploy root: %w", err)
	}
	unlock, err := lockedfile.MutexAt(filepath.Join(d.opts.DeployRoot, LockFileName)).Lock()
	if err != nil {
		return fmt.Errorf("failed to lock deploy root: %w", err)
	}
	defer unlock()

	// Bound the history before anything else, so a failed run never
	// grows the release tree unbounded.
	deleted, err := d.store.Prune(d.opts.Keep)
	if err != nil {
		return fmt.Errorf("failed to prune previous releases: %w", err)
	}
	for _, version := range deleted {
		d.log.Info("pruned release", "version", version)
	}

	resolved, err := d.fetcher.Resolve(ctx, fetch.ArtifactSpec{
		Name:     d.opts.Name,
		Location: d.opts.Location,
		Version:  d.opts.Version,
		Checksum: d.opts.Checksum,
	})
	if err != nil {
		return err
	}

	releasePath, err := d.store.ReleasePath(resolved.Version)
	if err != nil {
		return err
	}
	cachePath, err := d.store.CachePath(resolved.Version)
	if err != nil {
		return err
	}
	decision, err := d.decider.Decide(resolved.Version)
	if err != nil {
		return err
	}
	mustDeploy := decision.MustDeploy || d.opts.Force
	d.log.Info("deployment decision",
		"version", resolved.Version, "mustDeploy", mustDeploy, "forced", d.opts.Force, "reason", decision.Reason)

	// The release directory is created only after a deploying decision.
	// An empty directory created up front would register the version as
	// retained and poison the next decision.
	dirs := []string{cachePath}
	if mustDeploy {
		dirs = append(dirs, releasePath, d.store.SharedDir())
	}
	for _, dir := range dirs {
		if err := d.sys.EnsureDirectory(dir, d.opts.Owner, d.opts.Group, 0o755); err != nil {
			return fmt.Errorf("failed to prepare '%s': %w", dir, err)
		}
	}

	run := RunContext{
		Spec:        resolved.Spec,
		Version:     resolved.Version,
		DeployRoot:  d.opts.DeployRoot,
		ReleasePath: releasePath,
		SharedPath:  d.store.SharedDir(),
		CurrentLink: d.store.CurrentLink(),
		MustDeploy:  mustDeploy,
		Forced:      d.opts.Force,
	}

	// Retrieval happens on every run, keeping the cache warm and
	// validated independently of the decision.
	cached, err := d.fetcher.Fetch(ctx, resolved, cachePath)
	if err != nil {
		return fmt.Errorf("failed to retrieve artifact: %w", err)
	}
	run.CachedArtifact = cached

	if mustDeploy {
		if err := invoke(ctx, HookBeforeDeploy, d.hooks.BeforeDeploy, run); err != nil {
			return err
		}
		if err := invoke(ctx, HookBeforeExtract, d.hooks.BeforeExtract, run); err != nil {
			return err
		}
		if err := materialize(cached, releasePath); err != nil {
			return err
		}
		d.log.V(1).Info("payload materialized", "release", releasePath)
		if err := invoke(ctx, HookAfterExtract, d.hooks.AfterExtract, run); err != nil {
			return err
		}

		if err := invoke(ctx, HookBeforeSymlink, d.hooks.BeforeSymlink, run); err != nil {
			return err
		}
		if err := d.linkShared(run); err != nil {
			return err
		}
		if err := invoke(ctx, HookAfterSymlink, d.hooks.AfterSymlink, run); err != nil {
			return err
		}
	}

	if err := invoke(ctx, HookConfigure, d.hooks.Configure, run); err != nil {
		return err
	}

	if mustDeploy && d.opts.EnableMigration {
		for _, slot := range []struct {
			name string
			hook Hook
		}{
			{HookBeforeMigrate, d.hooks.BeforeMigrate},
			{HookMigrate, d.hooks.Migrate},
			{HookAfterMigrate, d.hooks.AfterMigrate},
		} {
			if err := invoke(ctx, slot.name, slot.hook, run); err != nil {
				return err
			}
		}
	}

	if mustDeploy || decision.Drifted {
		if err := invoke(ctx, HookRestart, d.hooks.Restart, run); err != nil {
			return err
		}
	}

	if !mustDeploy {
		return nil
	}

	if err := invoke(ctx, HookAfterDeploy, d.hooks.AfterDeploy, run); err != nil {
		return err
	}
	if err := d.store.Promote(resolved.Version); err != nil {
		return fmt.Errorf("failed to promote release: %w", err)
	}

	m, err := d.engine.Generate(releasePath)
	if err != nil {
		return fmt.Errorf("failed to generate release manifest: %w", err)
	}
	manifestPath, err := d.store.ManifestPath(resolved.Version)
	if err != nil {
		return err
	}
	if err := manifest.Save(m, manifestPath); err != nil {
		return fmt.Errorf("failed to write release manifest: %w", err)
	}

	d.log.Info("release deployed", "version", resolved.Version, "release", releasePath)
	return nil
}

// linkShared links every configured shared directory into the release. A
// directory of the same name extracted from the payload is replaced by
// the link.
func (d *Deployer) linkShared(run RunContext) error {
	for _, name := range d.opts.SharedDirs {
		src := filepath.Join(run.SharedPath, name)
		if err := d.sys.EnsureDirectory(src, d.opts.Owner, d.opts.Group, 0o755); err != nil {
			return fmt.Errorf("failed to prepare shared dir '%s': %w", name, err)
		}

		link := filepath.Join(run.ReleasePath, name)
		if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink == 0 {
			if err := os.RemoveAll(link); err != nil {
				return err
			}
		}
		if err := d.sys.EnsureSymlink(link, src, d.opts.Owner, d.opts.Group); err != nil {
			return fmt.Errorf("failed to link shared dir '%s': %w", name, err)
		}
	}
	return nil
}
