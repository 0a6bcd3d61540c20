package guard

// Version information for the loop guard runtime.
const (
	// Version is the current version of the loop guard runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the loop guard.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Threshold is the current iteration threshold.
	Threshold uint64

	// Enabled indicates whether overflow checking is active.
	Enabled bool
}

// GetInfo returns information about the loop guard runtime.
//
// Example:
//
//	info := guard.GetInfo()
//	fmt.Printf("Loop Guard %s (threshold=%d)\n", info.Version, info.Threshold)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Threshold: Threshold(),
		Enabled:   Enabled(),
	}
}
