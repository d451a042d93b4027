// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origInfo    Info
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	origInfo = *buildInfo

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	*buildInfo = origInfo

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
	}{
		{"Missing BuildName", "", "2026-10-15", "abcdef123", "v1.0.0", "BuildName is required"},
		{"Missing BuildTime", "tuner", "", "abcdef123", "v1.0.0", "BuildTime is required"},
		{"Missing BuildCommit", "tuner", "2026-10-15", "", "v1.0.0", "BuildCommit is required"},
		{"Missing BuildVersion", "tuner", "2026-10-15", "abcdef123", "", "BuildVersion is required"},
		{"Success Case", "tuner", "2026-10-15", "abcdef123", "v1.0.0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*buildInfo = Info{Name: "tuner", Time: "unknown", Commit: "unknown", Version: "dev"}

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil {
					t.Fatalf("Initialize() expected error, got nil")
				}
				if err.Error() != tt.wantErrMsg {
					t.Errorf("Initialize() error = %v, want %v", err, tt.wantErrMsg)
				}
				if got := Get(); got.Version != "dev" {
					t.Errorf("failed Initialize() modified info: %+v", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			got := Get()
			want := Info{Name: tt.buildName, Time: tt.buildTime, Commit: tt.buildCommit, Version: tt.buildVer}
			if got != want {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Name: "tuner", Time: "2026-10-15", Commit: "abc", Version: "v0.2.0"}
	want := "tuner v0.2.0 (commit abc, built 2026-10-15)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
