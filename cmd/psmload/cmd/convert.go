package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/normalize"
	"github.com/ChrisMcGann/psmload/pkg/writer/sqlite"
)

var (
	// Flags for convert command
	inputFile     string
	outputFile    string
	uploadID      string
	batchSize     int
	topN          int
	cutoffPercent float64
	dryRun        bool
	convertInput  inputFlags
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Load identification results into a SQLite database",
	Long: `Load a tabular (CSV) or mzIdentML identification file into a SQLite database.

Examples:
  # Load cross-link CSV results; peak lists sit next to the CSV
  psmload convert --in results.csv --out upload.db

  # Load mzIdentML with peak lists from another directory and top-100 peaks
  psmload convert --in search.mzid --out upload.db --peak-lists /data/runs --top-n 100

  # Check a file end to end without writing anything
  psmload convert --in results.csv --dry-run`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&inputFile, "in", "i", "", "Input file path (required)")
	convertCmd.Flags().StringVarP(&outputFile, "out", "o", "", "Output database file")
	convertCmd.Flags().StringVar(&uploadID, "upload-id", "", "Upload id stored with every record (default: random UUID)")
	convertCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Completed identifications per write batch")
	convertCmd.Flags().IntVar(&topN, "top-n", 0, "Keep only top N most intense peaks (0 = no limit)")
	convertCmd.Flags().Float64Var(&cutoffPercent, "cutoff", 0, "Intensity cutoff as % of base peak (0 = no cutoff)")
	convertCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Normalize in memory without writing a database")
	convertInput.register(convertCmd)

	convertCmd.MarkFlagRequired("in")
}

func runConvert(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(inputFile); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputFile)
	}
	if outputFile == "" && cfg.Output.Path != "" {
		outputFile = cfg.Output.Path
	}
	if outputFile == "" && !dryRun {
		return fmt.Errorf("--out is required unless --dry-run is set")
	}

	flags := cmd.Flags()
	if flags.Changed("batch-size") {
		cfg.Output.BatchSize = batchSize
	}
	if flags.Changed("top-n") {
		cfg.Filter.TopN = topN
	}
	if flags.Changed("cutoff") {
		cfg.Filter.IntensityCutoff = cutoffPercent
	}
	if err := convertInput.apply(cmd); err != nil {
		return err
	}
	if uploadID == "" {
		uploadID = uuid.NewString()
	}

	modDB, err := cfg.ModDatabase()
	if err != nil {
		return err
	}

	in, err := openInput(inputFile, modDB)
	if err != nil {
		return err
	}
	defer in.Close()

	pool := peakPool(inputFile)
	if pool != nil {
		defer pool.Close()
	}

	var sink normalize.Sink
	if dryRun {
		sink = normalize.NewMemorySink()
	} else {
		w, err := sqlite.NewWriter(outputFile, uploadID)
		if err != nil {
			return fmt.Errorf("failed to create output database: %w", err)
		}
		defer w.Close()
		sink = w
	}

	logger.Info("loading identifications",
		"input", inputFile,
		"output", outputFile,
		"upload_id", uploadID,
		"batch_size", cfg.Output.BatchSize,
		"peaks", pool != nil,
		"dry_run", dryRun,
	)

	n := normalize.New(normalizerConfig(uploadID, in, pool, modDB), sink)
	if err := n.Run(cmd.Context(), in.source); err != nil {
		return fmt.Errorf("load %s: %w", inputFile, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, statsTable(n.Stats(), n.Registry().Len()))
	fmt.Fprintf(out, "Upload: %s\n", uploadID)
	if !dryRun {
		fmt.Fprintf(out, "Output: %s\n", outputFile)
	}
	return nil
}
