package main

import (
	"github.com/nedasvi/notion-mcp-server-remote/cmd"
)

// version will be set by goreleaser during build
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
