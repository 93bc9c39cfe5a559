// Package main is the single-binary entrypoint for plano.
package main

import "github.com/plano-ai/plano/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
