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
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// System is the host capability surface the Deployer delegates filesystem
// mutation and process execution to. Implementations outside this package
// can substitute a configuration-management system.
type System interface {
	// EnsureDirectory creates the directory and any missing parents, and
	// applies the given mode and ownership. Empty owner or group leaves
	// ownership untouched.
	EnsureDirectory(path, owner, group string, mode os.FileMode) error
	// EnsureSymlink points the symlink at path to target, replacing any
	// existing link atomically.
	EnsureSymlink(path, target, owner, group string) error
	// RunCommand executes the command line through the shell, optionally
	// as the given owner and group.
	RunCommand(ctx context.Context, cmdline, owner, group string) error
}

// OSSystem is the default System backed by the local host.
type OSSystem struct{}

// NewOSSystem returns a System backed by the local host.
func NewOSSystem() *OSSystem {
	return &OSSystem{}
}

// EnsureDirectory implements System.
func (s *OSSystem) EnsureDirectory(path, owner, group string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return err
	}
	if err := os.Chmod(path, mode); err != nil {
		return err
	}
	return chown(path, owner, group)
}

// EnsureSymlink implements System. An existing link already pointing at
// the target is left alone, anything else is replaced through a temp link
// and a rename.
func (s *OSSystem) EnsureSymlink(path, target, owner, group string) error {
	if existing, err := os.Readlink(path); err == nil && existing == target {
		return nil
	}

	tmpLink := path + ".tmp"
	if err := os.Remove(tmpLink); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, path); err != nil {
		return err
	}
	if owner != "" || group != "" {
		uid, gid, err := lookupIDs(owner, group)
		if err != nil {
			return err
		}
		return os.Lchown(path, uid, gid)
	}
	return nil
}

// RunCommand implements System.
func (s *OSSystem) RunCommand(ctx context.Context, cmdline, owner, group string) error {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
	if owner != "" || group != "" {
		uid, gid, err := lookupIDs(owner, group)
		if err != nil {
			return err
		}
		if uid < 0 {
			uid = os.Getuid()
		}
		if gid < 0 {
			gid = os.Getgid()
		}
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Credential: &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)},
		}
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command '%s' failed: %w: %s", cmdline, err, out)
	}
	return nil
}

// chown applies the given ownership to path. Empty owner and group is a
// no-op.
func chown(path, owner, group string) error {
	if owner == "" && group == "" {
		return nil
	}
	uid, gid, err := lookupIDs(owner, group)
	if err != nil {
		return err
	}
	return os.Chown(path, uid, gid)
}

// lookupIDs resolves owner and group names to numeric ids. An empty name
// resolves to -1, leaving that id untouched on chown.
func lookupIDs(owner, group string) (int, int, error) {
	uid, gid := -1, -1
	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return 0, 0, fmt.Errorf("unknown owner '%s': %w", owner, err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return 0, 0, err
		}
	}
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return 0, 0, fmt.Errorf("unknown group '%s': %w", group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return 0, 0, err
		}
	}
	return uid, gid, nil
}
