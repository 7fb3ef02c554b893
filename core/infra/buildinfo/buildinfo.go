package buildinfo

import (
	"fmt"
	"log"
)

// Set at release time via -ldflags "-X .../buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the build identity compiled into a binary.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Current returns the build identity of this binary.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

func (i Info) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", i.Version, i.Commit, i.Date)
}

// Log writes the build identity prefixed with the component name, typically
// the first line a binary emits.
func Log(component string) {
	log.Printf("%s %s", component, Current())
}
