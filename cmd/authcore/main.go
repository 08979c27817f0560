// Command authcore runs the authentication API and its maintenance tasks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "authcore:", err)
		os.Exit(1)
	}
}
