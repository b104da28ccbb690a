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

import "context"

// Hook is a user-supplied lifecycle callback. Hooks have no return-value
// contract other than raising on failure.
type Hook func(ctx context.Context, run RunContext) error

// Hook slot names, in invocation order.
const (
	HookBeforeDeploy  = "before_deploy"
	HookBeforeExtract = "before_extract"
	HookAfterExtract  = "after_extract"
	HookBeforeSymlink = "before_symlink"
	HookAfterSymlink  = "after_symlink"
	HookConfigure     = "configure"
	HookBeforeMigrate = "before_migrate"
	HookMigrate       = "migrate"
	HookAfterMigrate  = "after_migrate"
	HookRestart       = "restart"
	HookAfterDeploy   = "after_deploy"
)

// Hooks holds the optional lifecycle callback slots the Deployer invokes
// at fixed points of a run. A nil slot is a no-op.
type Hooks struct {
	BeforeDeploy  Hook
	BeforeExtract Hook
	AfterExtract  Hook
	BeforeSymlink Hook
	AfterSymlink  Hook
	Configure     Hook
	BeforeMigrate Hook
	Migrate       Hook
	AfterMigrate  Hook
	Restart       Hook
	AfterDeploy   Hook
}

// invoke runs the hook registered for the named slot, translating a
// failure into a *HookError.
func invoke(ctx context.Context, name string, h Hook, run RunContext) error {
	if h == nil {
		return nil
	}
	if err := h(ctx, run); err != nil {
		return &HookError{Hook: name, Err: err}
	}
	return nil
}
