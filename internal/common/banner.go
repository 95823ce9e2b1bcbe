package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner.
// Never call it when stdout carries the MCP protocol.
func PrintBanner(version string) {
	banner.PrintSimple("Redbook", version)
}
