// Package buildinfo carries version metadata set at link time:
//
//	go build -ldflags "-X github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/buildinfo.Version=v1.2.3"
package buildinfo

import "fmt"

var (
	Version   = "dev"
	Revision  = "unknown"
	BuildDate = "unknown"
)

// String renders the version line printed by the version command.
func String() string {
	return fmt.Sprintf("memo-graph %s (rev %s, built %s)", Version, Revision, BuildDate)
}
