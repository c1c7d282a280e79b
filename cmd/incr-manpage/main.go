package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/incr/cmd/incr"
	"github.com/arthur-debert/incr/internal/version"
)

func main() {
	rootCmd := incr.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "INCR",
		Section: "1",
		Source:  "incr " + version.Version,
		Manual:  "incr manual",
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
