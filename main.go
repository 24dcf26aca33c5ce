package main

import (
	"capstan/cmd"
	"capstan/internal/version"
)

func main() {
	cmd.SetVersion(version.Version)
	cmd.Execute()
}
