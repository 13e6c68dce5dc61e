package npil

import (
	"fmt"

	"github.com/blang/semver"
)

// Version is the semantic version of the neuropil tools.
var Version = semver.MustParse("0.3.0")

// Versions returns a printable description of the tools and the formats they use.
func Versions() string {
	return fmt.Sprintf("neuropil %s (volume serialization format %d)", Version, volumeFormatVersion)
}

// volumeFormatVersion is bumped whenever Volume.MarshalBinary changes.
const volumeFormatVersion = 1
