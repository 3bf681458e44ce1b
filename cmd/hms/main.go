// Command hms runs the hospital API server and a console client that signs
// in, inspects the policy table and checks what the current session may do.
package main

import (
	"fmt"
	"os"
)

func main() {
	c := newCLI()
	err := c.rootCmd().Execute()
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
