package main

import (
	"os"

	"evalgo.org/tagscope/internal/commands"
	"evalgo.org/tagscope/internal/version"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	version.GitCommit = GitCommit

	os.Exit(commands.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
