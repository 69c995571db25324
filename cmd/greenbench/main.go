// Command greenbench runs green-thread scheduling workloads and reports how
// the scheduler shared the processor between them.
package main

import (
	"fmt"
	"os"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
