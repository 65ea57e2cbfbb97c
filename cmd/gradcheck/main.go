// Command gradcheck evaluates a student's course statuses against the requirements of
// a program and prints a report.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/liamcoop/gradcheck/internal/logger"
)

// errUnsatisfied makes the process exit with status 1 without printing an error.
var errUnsatisfied = errors.New("requirements not satisfied")

var rootCmd = &cobra.Command{
	Use:           "gradcheck",
	Short:         "Graduation requirement checker",
	Long:          "gradcheck loads a course catalog and a student's course statuses and reports which program requirements are satisfied.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()
	logger.SetOutput(os.Stderr)

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUnsatisfied) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
