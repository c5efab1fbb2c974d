package commands

import (
	"github.com/urfave/cli"
)

var allCommands []cli.Command

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "Use a given `CONFIG_FILE` when running this command",
		Value: "",
	}

	humanFlag = cli.BoolFlag{
		Name:  "human-readable, H",
		Usage: "Print a report instead of csv",
	}

	inputFlag = cli.StringFlag{
		Name:  "input, i",
		Usage: "Read IPv4 addresses, one per line, from `FILE` (default: stdin)",
		Value: "",
	}

	outputFlag = cli.StringFlag{
		Name:  "output, o",
		Usage: "Write csv rows to `FILE` (default: stdout)",
		Value: "",
	}
)

// bootstrapCommands registers commands with the front end. Called from the
// init function of each command's file.
func bootstrapCommands(commands ...cli.Command) {
	allCommands = append(allCommands, commands...)
}

// Commands provides all of the defined commands to the front end
func Commands() []cli.Command {
	return allCommands
}
