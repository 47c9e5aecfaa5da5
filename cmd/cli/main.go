package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"unidss/adapters/excel"
	"unidss/domain/department"
	"unidss/internal"
	"unidss/internal/config"
	"unidss/internal/container"
	"unidss/internal/format"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options shared by every subcommand
type options struct {
	configFile string
	jsonOutput bool
	outFile    string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "unidss-cli",
		Short:         "Analyze university department data from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (default: $CONFIG_FILE or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print the report as JSON")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newSampleCmd(opts),
		newInsightCmd(opts),
	)
	return rootCmd
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Derive metrics, recommendations and a summary for a CSV or xlsx file",
		Long: `Read a department file (columns Department, Students, Faculty, Budget),
compute the student-faculty ratio and budget per student for every row and
print the recommendations and the aggregate summary.

Example: unidss-cli analyze departments.csv --out report.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(opts)
			if err != nil {
				return err
			}
			records, err := readFile(args[0], c.Columns, c.Logger)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), opts, c, records)
		},
	}
	cmd.Flags().StringVar(&opts.outFile, "out", "", "Also write the derived table to this .csv or .xlsx file")
	return cmd
}

func newSampleCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Analyze the bundled sample departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(opts)
			if err != nil {
				return err
			}
			records, err := c.TestKit.SampleRecords()
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), opts, c, records)
		},
	}
	cmd.Flags().StringVar(&opts.outFile, "out", "", "Also write the derived table to this .csv or .xlsx file")
	return cmd
}

func newInsightCmd(opts *options) *cobra.Command {
	var useSample bool

	cmd := &cobra.Command{
		Use:   "insight [file]",
		Short: "Ask the completion endpoint for a narrative of the summary",
		Long: `Summarize the file (or the sample with --sample) and request a strategic
narrative. Requires OPENAI_API_KEY; otherwise the fallback message is printed.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if useSample {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContainer(opts)
			if err != nil {
				return err
			}

			var records []department.Record
			if useSample {
				records, err = c.TestKit.SampleRecords()
			} else {
				records, err = readFile(args[0], c.Columns, c.Logger)
			}
			if err != nil {
				return err
			}

			summary := department.Summarize(department.Derive(records))
			ins := c.Insights.Generate(cmdContext(cmd), summary)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"text": ins.Text, "failed": ins.Failed})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ins.Text)
			return err
		},
	}
	cmd.Flags().BoolVar(&useSample, "sample", false, "Use the bundled sample departments")
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newContainer(opts *options) (*container.Container, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	// CLI output goes to stdout; keep the log quiet unless asked
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Logging.Level = "WARN"
	}
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Logging.Format = "console"
	}
	return container.New(cfg)
}

func readFile(path string, cols excel.Columns, logger *internal.Logger) ([]department.Record, error) {
	reader, err := excel.NewDataReaderForFile(path, logger)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return reader.ReadDepartments(content, cols)
}

type reportJSON struct {
	Records         []department.DerivedRecord  `json:"records"`
	Recommendations []department.Recommendation `json:"recommendations"`
	Summary         department.Summary          `json:"summary"`
}

func report(w io.Writer, opts *options, c *container.Container, records []department.Record) error {
	derived := department.Derive(records)
	recs := c.Config.Rules.Recommend(derived)
	summary := department.Summarize(derived)

	if opts.outFile != "" {
		if err := exportFile(opts.outFile, c.Columns, derived); err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		return writeJSON(w, reportJSON{Records: derived, Recommendations: recs, Summary: summary})
	}
	return printReport(w, derived, recs, summary)
}

func exportFile(path string, cols excel.Columns, derived []department.DerivedRecord) (err error) {
	ft, err := excel.DetectFileType(path)
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return excel.WriteDepartments(f, ft, cols, derived)
}

func printReport(w io.Writer, derived []department.DerivedRecord, recs []department.Recommendation, s department.Summary) error {
	fmt.Fprintf(w, "Total Students: %s\nTotal Faculty:  %s\nTotal Budget:   %s\nAverage Ratio:  %s\n\n",
		format.Count(s.TotalStudents), format.Count(s.TotalFaculty), format.Money(s.TotalBudget), format.Ratio(s.AverageRatio))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Department\tStudents\tFaculty\tBudget\tRatio\tBudget/Student\t")
	for _, r := range derived {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t\n",
			r.Name, r.Students, r.Faculty, format.Amount(r.Budget), format.Ratio(r.StudentFacultyRatio), format.Amount(r.BudgetPerStudent))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nRecommendations:")
	if len(recs) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, r := range recs {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
