package version

import (
	"fmt"
	"runtime"
)

const coreVersion = "0.1.0"

// Provisioned by ldflags
var (
	commit     string
	prerelease = "dev"
)

func Core() string {
	return coreVersion
}

// Short returns the version with pre-release, if available.
func Short() string {
	if prerelease != "" {
		return fmt.Sprintf("%s-%s", coreVersion, prerelease)
	}
	return coreVersion
}

// Full returns the version with commit hash, runtime os and arch.
func Full() string {
	c := commit
	if c != "" {
		c = " " + c
	}

	return fmt.Sprintf("v%s%s %s/%s", Short(), c, runtime.GOOS, runtime.GOARCH)
}
