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

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploykit/releaser/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy an artifact version onto the local deploy root",
	RunE:  runDeploy,
}

var deployCmdFlags struct {
	opts             deploy.Options
	configureCommand string
	migrateCommand   string
	restartCommand   string
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmdFlags.opts.BindFlags(deployCmd.Flags())

	deployCmd.Flags().StringVar(&deployCmdFlags.configureCommand, "configure-command", "",
		"Shell command run on every invocation, after a deploy when one happens.")
	deployCmd.Flags().StringVar(&deployCmdFlags.migrateCommand, "migrate-command", "",
		"Shell command run as the migrate step. Requires --enable-migration.")
	deployCmd.Flags().StringVar(&deployCmdFlags.restartCommand, "restart-command", "",
		"Shell command run after a deploy or when drift was repaired.")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := setupSignalHandler()
	log := newLogger(rootCmdFlags.logger)
	sys := deploy.NewOSSystem()

	opts := deployCmdFlags.opts
	hooks := deploy.Hooks{
		Configure: commandHook(sys, deployCmdFlags.configureCommand, opts.Owner, opts.Group),
		Migrate:   commandHook(sys, deployCmdFlags.migrateCommand, opts.Owner, opts.Group),
		Restart:   commandHook(sys, deployCmdFlags.restartCommand, opts.Owner, opts.Group),
	}

	d, err := deploy.NewDeployer(opts,
		deploy.WithSystem(sys),
		deploy.WithHooks(hooks),
		deploy.WithLogger(log),
	)
	if err != nil {
		return err
	}
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}
	return nil
}

// commandHook adapts a shell command line into a lifecycle hook, run from
// the release directory. An empty command line yields no hook.
func commandHook(sys deploy.System, cmdline, owner, group string) deploy.Hook {
	if cmdline == "" {
		return nil
	}
	return func(ctx context.Context, run deploy.RunContext) error {
		return sys.RunCommand(ctx, fmt.Sprintf("cd %q && %s", run.ReleasePath, cmdline), owner, group)
	}
}
