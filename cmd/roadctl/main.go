// Command roadctl answers proximity questions offline against a JSON snapshot
// of located reports, using the same engine as the API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
