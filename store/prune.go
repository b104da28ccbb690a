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

package store

import (
	"errors"
	"fmt"
	"os"
)

// Prune bounds the number of retained non-current releases to keep,
// deleting the oldest ones by modification time first. Each deleted
// release loses both its release directory and its cached retrieval
// artifacts. The current release is never deleted. The versions actually
// removed are returned in deletion order.
func (s *ReleaseStore) Prune(keep int) ([]string, error) {
	if keep < 0 {
		return nil, fmt.Errorf("invalid keep count: %d", keep)
	}

	previous, err := s.PreviousVersions()
	if err != nil {
		return nil, err
	}
	if len(previous) <= keep {
		return nil, nil
	}

	var deleted []string
	var errs []error
	for _, version := range previous[:len(previous)-keep] {
		releasePath, err := s.ReleasePath(version)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.RemoveAll(releasePath); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete release '%s': %w", version, err))
			continue
		}
		cachePath, err := s.CachePath(version)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.RemoveAll(cachePath); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete cached artifacts of '%s': %w", version, err))
			continue
		}
		deleted = append(deleted, version)
	}
	return deleted, errors.Join(errs...)
}
