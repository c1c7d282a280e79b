package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/arthur-debert/incr/cmd/incr"
	"github.com/charmbracelet/lipgloss"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

func main() {
	rootCmd := incr.NewRootCmd()
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	// Build failures were already reported as diagnostics
	var exitErr *incr.ExitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))
	os.Exit(incr.ExitError)
}
