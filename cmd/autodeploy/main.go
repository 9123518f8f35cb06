// Package main provides the autodeploy CLI, which repeatedly deploys randomly
// named token contracts across selected EVM networks.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
