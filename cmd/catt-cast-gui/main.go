// Package main is the entry point for catt-cast-gui, a terminal remote
// for Chromecast receivers.
package main

import (
	"os"

	"github.com/ergosteur/catt-cast-gui/cmd/catt-cast-gui/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
