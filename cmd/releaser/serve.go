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
	"github.com/spf13/cobra"

	"github.com/deploykit/releaser/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deploy root over HTTP",
	RunE:  runServe,
}

var serveCmdFlags struct {
	root    string
	address string
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveCmdFlags.root, "root", "/opt/deploy",
		"The directory to serve.")
	serveCmd.Flags().StringVar(&serveCmdFlags.address, "addr", ":9090",
		"The TCP address to listen on.")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := setupSignalHandler()
	log := newLogger(rootCmdFlags.logger)

	return server.Start(ctx, &server.Options{
		Root:    serveCmdFlags.root,
		Address: serveCmdFlags.address,
	}, log)
}
