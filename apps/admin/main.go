package main

import (
	"fmt"
	"os"
)

func main() {
	cli := new(commandLine)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
