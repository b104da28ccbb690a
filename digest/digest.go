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

// Package digest selects and validates the hashing algorithms used to
// fingerprint artifact and release file contents.
package digest

import (
	"crypto"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// SHA1 is the SHA-1 algorithm. It is not registered by default in the
// digest library, registration happens in this package's init.
const SHA1 digest.Algorithm = "sha1"

// Canonical is the algorithm used to fingerprint file contents when no
// explicit algorithm is configured.
var Canonical = digest.SHA256

func init() {
	digest.RegisterAlgorithm(SHA1, crypto.SHA1)
}

// AlgorithmForName returns the digest algorithm for the given name, or an
// error of type digest.ErrDigestUnsupported if the algorithm is not
// available.
func AlgorithmForName(name string) (digest.Algorithm, error) {
	a := digest.Algorithm(name)
	if !a.Available() {
		return "", fmt.Errorf("%w: %s", digest.ErrDigestUnsupported, name)
	}
	return a, nil
}
