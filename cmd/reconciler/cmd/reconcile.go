package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gst-reconciliation-service/cmd/reconciler/config"
	"gst-reconciliation-service/internal/models"
	"gst-reconciliation-service/internal/parsers"
	"gst-reconciliation-service/internal/reconciler"
	"gst-reconciliation-service/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	booksFile  string
	gstr2aFile string

	outputFormat string
	outputFile   string

	taxTolerance      float64
	dateTolerance     int
	nameThreshold     float64
	gstinThreshold    float64
	groupTaxTolerance float64
	namePreference    string
	caseSensitive     bool

	runEnhanced    bool
	unmappedReport string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the Books ledger against GSTR-2A",
	Long: `Reconcile compares purchase invoices recorded in the Books ledger with
the supplier-filed entries in GSTR-2A and classifies every record.

This command requires:
- A Books ledger file (CSV or XLSX)
- A GSTR-2A ledger file (CSV or XLSX)

Examples:
  # Basic reconciliation with console summary
  gst-reconciler reconcile --books-file books.csv --gstr2a-file gstr2a.csv

  # Full CSV report with custom tolerances
  gst-reconciler reconcile -b books.csv -g gstr2a.csv \
    --tax-tolerance 25 --date-tolerance 3 \
    --output-format csv --output-file report.csv

  # XLSX workbook plus unmapped supplier report
  gst-reconciler reconcile -b books.xlsx -g gstr2a.xlsx \
    --output-format xlsx --output-file report.xlsx \
    --unmapped-report unmapped.csv

  # Apply enhanced matching to the residue
  gst-reconciler reconcile -b books.csv -g gstr2a.csv --enhanced`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&booksFile, "books-file", "b", "", "path to Books ledger file (required)")
	reconcileCmd.Flags().StringVarP(&gstr2aFile, "gstr2a-file", "g", "", "path to GSTR-2A ledger file (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Tolerance flags
	reconcileCmd.Flags().Float64Var(&taxTolerance, "tax-tolerance", 10.0, "total tax difference tolerance in currency units")
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", 1, "invoice date tolerance in days")
	reconcileCmd.Flags().Float64Var(&nameThreshold, "name-threshold", 70, "name similarity threshold (0-100)")
	reconcileCmd.Flags().Float64Var(&gstinThreshold, "gstin-threshold", 80, "GSTIN similarity threshold (0-100)")
	reconcileCmd.Flags().Float64Var(&groupTaxTolerance, "group-tax-tolerance", 75.0, "aggregate tax tolerance for supplier groups")
	reconcileCmd.Flags().StringVar(&namePreference, "name-preference", "Legal Name", "preferred name field: 'Legal Name' or 'Trade Name'")
	reconcileCmd.Flags().BoolVar(&caseSensitive, "case-sensitive-names", false, "compare names case-sensitively")

	// Feature flags
	reconcileCmd.Flags().BoolVar(&runEnhanced, "enhanced", false, "apply enhanced matching to unmatched records")
	reconcileCmd.Flags().StringVar(&unmappedReport, "unmapped-report", "", "write unmapped supplier report (CSV) to this path")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("books-file")
	reconcileCmd.MarkFlagRequired("gstr2a-file")

	// Bind flags to viper
	viper.BindPFlag("books-file", reconcileCmd.Flags().Lookup("books-file"))
	viper.BindPFlag("gstr2a-file", reconcileCmd.Flags().Lookup("gstr2a-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("tax-tolerance", reconcileCmd.Flags().Lookup("tax-tolerance"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("name-threshold", reconcileCmd.Flags().Lookup("name-threshold"))
	viper.BindPFlag("gstin-threshold", reconcileCmd.Flags().Lookup("gstin-threshold"))
	viper.BindPFlag("group-tax-tolerance", reconcileCmd.Flags().Lookup("group-tax-tolerance"))
	viper.BindPFlag("name-preference", reconcileCmd.Flags().Lookup("name-preference"))
	viper.BindPFlag("case-sensitive-names", reconcileCmd.Flags().Lookup("case-sensitive-names"))
	viper.BindPFlag("enhanced", reconcileCmd.Flags().Lookup("enhanced"))
	viper.BindPFlag("unmapped-report", reconcileCmd.Flags().Lookup("unmapped-report"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	booksFile = viper.GetString("books-file")
	gstr2aFile = viper.GetString("gstr2a-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	runEnhanced = viper.GetBool("enhanced")
	unmappedReport = viper.GetString("unmapped-report")

	if booksFile == "" {
		return fmt.Errorf("books-file is required")
	}
	if gstr2aFile == "" {
		return fmt.Errorf("gstr2a-file is required")
	}

	if err := validateFileExists(booksFile, "Books ledger file"); err != nil {
		return err
	}
	if err := validateFileExists(gstr2aFile, "GSTR-2A ledger file"); err != nil {
		return err
	}

	validFormats := map[string]bool{"console": true, "csv": true, "xlsx": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, csv, xlsx", outputFormat)
	}
	if outputFormat == "xlsx" && outputFile == "" {
		return fmt.Errorf("output-file is required for xlsx output")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Books file: %s\n", booksFile)
		fmt.Fprintf(os.Stderr, "GSTR-2A file: %s\n", gstr2aFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
	}

	tolerances, err := config.CreateToleranceConfig()
	if err != nil {
		return err
	}

	books, booksStats, err := parsers.ParseLedgerFile(booksFile, models.SourceBooks)
	if err != nil {
		return err
	}
	gstr2a, gstr2aStats, err := parsers.ParseLedgerFile(gstr2aFile, models.SourceGSTR2A)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Parsed %d Books records (%d amount errors), %d GSTR-2A records (%d amount errors)\n",
			booksStats.ParsedRecords, booksStats.AmountErrors,
			gstr2aStats.ParsedRecords, gstr2aStats.AmountErrors)
	}

	run, err := reconciler.New(parsers.Combine(books, gstr2a), tolerances)
	if err != nil {
		return err
	}

	if runEnhanced {
		enhanced := run.RunIntelligentEnhancedMatching()
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Enhanced matching reclaimed %d records (%d invoice groups, %d supplier groups)\n",
				enhanced.RecordsReclaimed, enhanced.GroupsApplied, enhanced.TaxGroupsApplied)
		}
	}

	results := run.GetResults()

	if unmappedReport != "" {
		if err := writeUnmappedReport(unmappedReport, run.UnmappedSuppliers()); err != nil {
			return err
		}
	}

	return writeResults(results)
}

func writeResults(results *reconciler.Results) error {
	switch outputFormat {
	case "xlsx":
		rows := results.FinalReport
		reporter.SortRowsForDisplay(rows)
		return reporter.WriteXLSX(outputFile, rows, results.Summary)
	case "csv":
		out, cleanup, err := openOutput()
		if err != nil {
			return err
		}
		defer cleanup()
		rows := results.FinalReport
		reporter.SortRowsForDisplay(rows)
		return reporter.WriteCSV(out, rows)
	default:
		out, cleanup, err := openOutput()
		if err != nil {
			return err
		}
		defer cleanup()
		return reporter.RenderSummary(out, results.Summary)
	}
}

func openOutput() (io.Writer, func(), error) {
	if outputFile == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func writeUnmappedReport(path string, suppliers []*reporter.UnmappedSupplier) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create unmapped report file: %w", err)
	}
	defer f.Close()
	return reporter.WriteUnmappedCSV(f, suppliers)
}
