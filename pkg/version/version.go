// Package version holds the release metadata for cloudplay.
package version

const (
	// Name is the program and package name.
	Name = "cloudplay"
	// Version is the release version.
	Version = "0.1"
	// Description is the one-line summary shown by the CLI.
	Description = "Build playlists of tracks published on cloud services."
	// License is the SPDX identifier of the project license.
	License = "ISC"
)

// String returns "cloudplay <version>".
func String() string {
	return Name + " " + Version
}
