// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package about

import "fmt"

// Base version information.
//
// This is the fallback data used when version information is not
// provided via go ldflags.
var (
	version       = "0.0.0"                // semantic version X.Y.Z
	buildHash     = "00000000"             // sha1 from git
	buildDate     = "1970-01-01T00:00:00Z" // build date in ISO8601 format, output of $(date -u +'%Y-%m-%dT%H:%M:%SZ')
	buildSnapshot = "true"                 // boolean
)

// BuildInfo contains build metadata information.
type BuildInfo struct {
	Version  string `json:"version"`
	Hash     string `json:"hash"`
	Date     string `json:"date"`
	Snapshot string `json:"snapshot"`
}

// VersionString returns the version and the build hash, e.g. 1.2.0-a1b2c3d4.
func (bi BuildInfo) VersionString() string {
	return fmt.Sprintf("%s-%s", bi.Version, bi.Hash)
}

// GetBuildInfo returns the build information injected at link time.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:  version,
		Hash:     buildHash,
		Date:     buildDate,
		Snapshot: buildSnapshot,
	}
}
