package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/sitewatch/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cmd.Code(err))
}
