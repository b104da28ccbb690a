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
	"os"

	"github.com/spf13/pflag"
)

const (
	flagName = "name"

	flagLocation = "location"

	flagVersion = "version"

	flagChecksum = "checksum"

	flagDeployRoot    = "deploy-root"
	envDeployRoot     = "DEPLOY_ROOT"
	defaultDeployRoot = "/opt/deploy"

	flagCacheRoot    = "cache-root"
	envCacheRoot     = "CACHE_ROOT"
	defaultCacheRoot = "/var/cache/releaser"

	flagKeep    = "keep"
	defaultKeep = 2

	flagForce = "force"

	flagEnableMigration = "enable-migration"

	flagSharedDirs = "shared-dir"

	flagOwner = "owner"
	flagGroup = "group"

	flagDigestAlgo    = "digest-algo"
	defaultDigestAlgo = "sha256"
)

// BindFlags parses the given pflag.FlagSet and sets the Options
// accordingly.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, flagName, "",
		"The logical artifact name, used to key the download cache.")

	fs.StringVar(&o.Location, flagLocation, "",
		"The artifact location: a direct URL, a '<group>:<artifact>:<version>[:<ext>]' repository coordinate, or a local file path.")

	fs.StringVar(&o.Version, flagVersion, "",
		"The artifact version to deploy. 'latest' is resolved against the repository for coordinate locations.")

	fs.StringVar(&o.Checksum, flagChecksum, "",
		"The expected checksum of the artifact file. Empty disables verification.")

	fs.StringVar(&o.DeployRoot, flagDeployRoot,
		envOrDefault(envDeployRoot, defaultDeployRoot),
		"The deploy target root directory.")

	fs.StringVar(&o.CacheRoot, flagCacheRoot,
		envOrDefault(envCacheRoot, defaultCacheRoot),
		"The directory cached artifact downloads are kept in.")

	fs.IntVar(&o.Keep, flagKeep, defaultKeep,
		"The number of previous releases retained after a deploy.")

	fs.BoolVar(&o.Force, flagForce, false,
		"Deploy regardless of the deployment decision.")

	fs.BoolVar(&o.EnableMigration, flagEnableMigration, false,
		"Run the migrate hook slots during a deploy.")

	fs.StringSliceVar(&o.SharedDirs, flagSharedDirs, nil,
		"Name of a directory under shared/ symlinked into every release. Repeatable.")

	fs.StringVar(&o.Owner, flagOwner, "",
		"The owner of directories and symlinks created by the deployer.")

	fs.StringVar(&o.Group, flagGroup, "",
		"The group of directories and symlinks created by the deployer.")

	fs.StringVar(&o.DigestAlgo, flagDigestAlgo, defaultDigestAlgo,
		"The hashing algorithm used for manifests and bare hex checksums.")
}

// envOrDefault returns the value of the environment variable named by the
// key. If the variable is empty or not present, it returns the
// defaultValue instead.
func envOrDefault(envName, defaultValue string) string {
	if ret := os.Getenv(envName); ret != "" {
		return ret
	}
	return defaultValue
}
