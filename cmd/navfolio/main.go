// Command navfolio inspects portfolios and maintains the returns cache from the terminal
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
