package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/liamcoop/gradcheck/internal/logger"
	"github.com/liamcoop/gradcheck/programs"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a program document",
	Long:  "Checks a YAML or JSON program document against the document schema and compiles every rule.",
	RunE:  runValidate,
}

var validateRulesFile string

func init() {
	validateCmd.Flags().StringVarP(&validateRulesFile, "rules", "r", "", "Path to the program document (required)")
	if err := validateCmd.MarkFlagRequired("rules"); err != nil {
		panic(fmt.Sprintf("failed to mark rules flag as required: %v", err))
	}
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	return validateProgram(cmd.OutOrStdout(), validateRulesFile)
}

// validateProgram prints every problem of the document at path and returns
// errUnsatisfied if there are any.
func validateProgram(out io.Writer, path string) error {
	doc, err := programs.LoadFile(path)
	if err != nil {
		logger.InvalidInput("program", err)

		var ve *programs.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		fmt.Fprintf(out, "%s: %d problem(s)\n", path, len(ve.Errors))
		for _, fe := range ve.Errors {
			fmt.Fprintf(out, "  %s\n", fe.Error())
		}
		return errUnsatisfied
	}

	fmt.Fprintf(out, "%s: ok, program %s with %d rules\n", path, doc.ID, len(doc.Rules))
	return nil
}
