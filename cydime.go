package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/Ames-Laboratory-Cyber-Group/Cydime/commands"
	"github.com/Ames-Laboratory-Cyber-Group/Cydime/config"
	"github.com/urfave/cli"
)

// Entry point of cydime
func main() {
	app := cli.NewApp()
	app.Name = "cydime"
	app.Usage = "Score, annotate and judge IPv4 addresses seen on the network."

	// Change the version string with updates so that a quick help command will
	// let the testers know what version of Cydime they're on
	app.Version = config.Version

	// Define commands used with this application
	app.Commands = commands.Commands()

	runtime.GOMAXPROCS(runtime.NumCPU())
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
