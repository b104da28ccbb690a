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

package version

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestParse(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{version: "1.2.3"},
		{version: "v1.2.3"},
		{version: "2025.02.03-rc.1"},
		{version: "1.0.0+build.5"},
		{version: "1.2", wantErr: true},
		{version: "latest", wantErr: true},
		{version: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			g := NewWithT(t)

			_, err := Parse(tt.version)
			if tt.wantErr {
				g.Expect(err).To(HaveOccurred())
				return
			}
			g.Expect(err).ToNot(HaveOccurred())
		})
	}
}

func TestSort(t *testing.T) {
	g := NewWithT(t)

	got := Sort([]string{"1.0.0", "not-a-version", "2.1.0", "v0.9.0", "2.0.0-rc.1"})
	g.Expect(got).To(Equal([]string{"2.1.0", "2.0.0-rc.1", "1.0.0", "v0.9.0"}))
}

func TestLatest(t *testing.T) {
	g := NewWithT(t)

	latest, err := Latest([]string{"1.0.0", "1.10.0", "1.2.0"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(latest).To(Equal("1.10.0"))

	_, err = Latest([]string{"nope", ""})
	g.Expect(err).To(MatchError(ErrNoVersions))
}
