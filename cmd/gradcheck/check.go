package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/liamcoop/gradcheck/catalog"
	"github.com/liamcoop/gradcheck/internal/logger"
	"github.com/liamcoop/gradcheck/ledger"
	"github.com/liamcoop/gradcheck/programs"
	"github.com/liamcoop/gradcheck/rules"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a student's statuses against a program",
	Long: "Loads one or more catalog CSV files and a ledger file (YAML or JSON, course code to status) " +
		"and evaluates every active rule of the program. Exits with status 1 when a requirement is not satisfied.",
	RunE: runCheck,
}

// checkOptions holds the flags of the check command.
type checkOptions struct {
	Catalogs        []string
	Ledger          string
	Program         string
	RulesFile       string
	JSON            bool
	Details         bool
	NoColor         bool
	AllowDuplicates bool
}

var checkOpts checkOptions

func init() {
	checkCmd.Flags().StringArrayVarP(&checkOpts.Catalogs, "catalog", "c", nil, "Path to a catalog CSV file (repeatable, required)")
	checkCmd.Flags().StringVarP(&checkOpts.Ledger, "ledger", "l", "", "Path to the ledger YAML or JSON file (required)")
	checkCmd.Flags().StringVarP(&checkOpts.Program, "program", "p", "advanced-course", "ID of a built-in program")
	checkCmd.Flags().StringVarP(&checkOpts.RulesFile, "rules", "r", "", "Path to a program document, overrides --program")
	checkCmd.Flags().BoolVar(&checkOpts.JSON, "json", false, "Print the report as JSON")
	checkCmd.Flags().BoolVar(&checkOpts.Details, "details", false, "List counted and missing courses per rule")
	checkCmd.Flags().BoolVar(&checkOpts.NoColor, "no-color", false, "Disable colors")
	checkCmd.Flags().BoolVar(&checkOpts.AllowDuplicates, "allow-duplicates", false, "Accept duplicate course codes across catalog files")

	if err := checkCmd.MarkFlagRequired("catalog"); err != nil {
		panic(fmt.Sprintf("failed to mark catalog flag as required: %v", err))
	}
	if err := checkCmd.MarkFlagRequired("ledger"); err != nil {
		panic(fmt.Sprintf("failed to mark ledger flag as required: %v", err))
	}

	rootCmd.AddCommand(checkCmd)
}

// Report is the JSON form of a check.
type Report struct {
	Program   string         `json:"program"`
	Name      string         `json:"name"`
	Satisfied bool           `json:"satisfied"`
	Passed    int            `json:"passed"`
	Total     int            `json:"total"`
	Failed    []string       `json:"failed,omitempty"`
	Results   []rules.Result `json:"results"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	return check(cmd.OutOrStdout(), checkOpts)
}

// check evaluates and prints the report. It returns errUnsatisfied when a rule fails.
func check(out io.Writer, opts checkOptions) error {
	courses, err := loadCatalog(opts.Catalogs, opts.AllowDuplicates)
	if err != nil {
		logger.InvalidInput("catalog", err)
		return err
	}

	l, err := ledger.DecodeFile(opts.Ledger)
	if err != nil {
		logger.InvalidInput("ledger", err)
		return err
	}

	doc, err := loadProgram(opts.Program, opts.RulesFile)
	if err != nil {
		return err
	}

	report, err := evaluate(doc, courses, l)
	if err != nil {
		return err
	}

	if opts.JSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderReport(report, renderOptions{Details: opts.Details, Color: !opts.NoColor}))
	}

	if !report.Satisfied {
		return errUnsatisfied
	}
	return nil
}

func loadCatalog(paths []string, allowDuplicates bool) ([]catalog.CourseRecord, error) {
	var opts []catalog.Option
	if allowDuplicates {
		opts = append(opts, catalog.WithAllowDuplicates())
	}
	return catalog.LoadFiles(paths, opts...)
}

func loadProgram(id, path string) (*programs.Document, error) {
	if path != "" {
		return programs.LoadFile(path)
	}
	return programs.Default(id)
}

// evaluate runs the active rules of doc in document order.
func evaluate(doc *programs.Document, courses []catalog.CourseRecord, l ledger.Ledger) (Report, error) {
	var active []*rules.Definition
	for _, def := range doc.Definitions() {
		if def.Active {
			active = append(active, def)
		}
	}
	rs, err := rules.CompileAll(active)
	if err != nil {
		return Report{}, err
	}

	agg := rules.Aggregate(rs, courses, l.Normalize(courses))
	logger.Evaluated(doc.ID, agg.Passed(), len(agg.Results), agg.Satisfied)

	report := Report{
		Program:   doc.ID,
		Name:      doc.Name,
		Satisfied: agg.Satisfied,
		Passed:    agg.Passed(),
		Total:     len(agg.Results),
		Results:   agg.Results,
	}
	for _, res := range agg.Failed() {
		report.Failed = append(report.Failed, res.ID)
	}
	return report, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
