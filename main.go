package main

import (
	"github.com/BioHazard786/warpmatch/cmd"
	"github.com/BioHazard786/warpmatch/internal/logging"
)

func main() {
	// serve re-initializes once its config is loaded
	logging.Init("")
	cmd.Execute()
}
