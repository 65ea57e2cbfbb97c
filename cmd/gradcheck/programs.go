package main

import (
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/liamcoop/gradcheck/programs"
)

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List the built-in programs",
	RunE:  runPrograms,
}

var programsJSON bool

func init() {
	programsCmd.Flags().BoolVar(&programsJSON, "json", false, "Print the programs as JSON")
	rootCmd.AddCommand(programsCmd)
}

type programSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Rules       int    `json:"rules"`
}

func runPrograms(cmd *cobra.Command, _ []string) error {
	return listPrograms(cmd.OutOrStdout(), programsJSON)
}

func listPrograms(out io.Writer, asJSON bool) error {
	docs, err := programs.Defaults()
	if err != nil {
		return err
	}

	summaries := make([]programSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, programSummary{
			ID:          doc.ID,
			Name:        doc.Name,
			Description: doc.Description,
			Rules:       len(doc.Rules),
		})
	}

	if asJSON {
		return writeJSON(out, summaries)
	}

	width := 0
	for _, s := range summaries {
		width = max(width, runewidth.StringWidth(s.ID))
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  %3d rules  %s\n", runewidth.FillRight(s.ID, width), s.Rules, s.Name)
	}
	return nil
}
