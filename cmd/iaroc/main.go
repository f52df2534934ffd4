package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Setup SetupCommand `command:"setup" description:"Find the Create base, wire the sensors and check them"`
	Run   RunCommand   `command:"run" description:"Start the maze controller with the dashboard"`
	Info  InfoCommand  `command:"info" description:"Read and print every sensor of the Create once"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "iaroc - reactive maze controller for an iRobot Create"

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
