// Package main is the single-binary entrypoint for Searchlight.
package main

import "github.com/searchlight-io/searchlight/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
