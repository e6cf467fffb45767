package main

import (
	"fmt"
	"os"

	editforge "github.com/editforge/editforge"
)

func main() {
	if err := editforge.RunCmd(os.Args, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
