/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package main

import (
	"fmt"
	"os"

	"github.com/allbin/uart-test/cmd"
	"github.com/allbin/uart-test/internal/harness"
)

func main() {
	err := cmd.NewRootCmd(harness.DefaultRegistry()).Execute()
	if err != nil && !cmd.Reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(harness.ExitStatus(err))
}
