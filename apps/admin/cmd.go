package main

import (
	"errors"
	"flag"
	"fmt"
)

var errHelp = errors.New("help provided")

type commandLine struct{}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - run database migrations")
	fmt.Println("  seeddemo [-students N] - insert a demo task with an enrolled roster")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seeddemo", flag.ExitOnError)
	seedStudents := seedCmd.Int("students", 10, "The number of demo students to enroll.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "seeddemo":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedStudents < 1 {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seedDemo(*seedStudents)
	default:
		cli.printUsage()
		return errHelp
	}
}
