package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigDir string `long:"config-dir" short:"c" default:"config" description:"Directory holding console_config.yaml"`

	Serve ServeCommand `command:"serve" description:"Run the console with the HTTP and websocket input surfaces"`
	TUI   TUICommand   `command:"tui" description:"Drive the robot from this terminal"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Open-Teleop console - operator side of the teleoperation link"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
