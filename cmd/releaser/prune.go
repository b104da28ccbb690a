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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploykit/releaser/store"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete previous releases beyond the retention count",
	RunE:  runPrune,
}

var pruneCmdFlags struct {
	name       string
	deployRoot string
	cacheRoot  string
	keep       int
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneCmdFlags.name, "name", "",
		"The logical artifact name, used to key the download cache.")
	pruneCmd.Flags().StringVar(&pruneCmdFlags.deployRoot, "deploy-root", "/opt/deploy",
		"The deploy target root directory.")
	pruneCmd.Flags().StringVar(&pruneCmdFlags.cacheRoot, "cache-root", "/var/cache/releaser",
		"The directory cached artifact downloads are kept in.")
	pruneCmd.Flags().IntVar(&pruneCmdFlags.keep, "keep", 2,
		"The number of previous releases to retain.")
}

func runPrune(cmd *cobra.Command, args []string) error {
	log := newLogger(rootCmdFlags.logger)

	s := store.New(pruneCmdFlags.deployRoot, pruneCmdFlags.cacheRoot, pruneCmdFlags.name)
	deleted, err := s.Prune(pruneCmdFlags.keep)
	if err != nil {
		return fmt.Errorf("failed to prune previous releases: %w", err)
	}
	if len(deleted) == 0 {
		log.Info("nothing to prune", "keep", pruneCmdFlags.keep)
		return nil
	}
	for _, version := range deleted {
		log.Info("pruned release", "version", version)
	}
	return nil
}
