package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/core"
	"github.com/ChrisMcGann/psmload/pkg/normalize"
)

var (
	validateInput inputFlags
	massTolerance float64
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate an identification file without writing output",
	Long: `Read and normalize an identification file, reporting the first fatal error.
Peak lists are resolved only when --peak-lists is given. The reported calculated
m/z of linear identifications is compared with the m/z of their sequence.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateInput.register(validateCmd)
	validateCmd.Flags().Float64Var(&massTolerance, "mass-tolerance", normalize.DefaultMassTolerance, "Accepted calculated m/z difference in Th")
}

// discardSink counts what would have been written.
type discardSink struct {
	batches int
	records int
}

func (d *discardSink) WriteBatch(ctx context.Context, b *normalize.Batch) error {
	d.batches++
	d.records += b.Len()
	return ctx.Err()
}

func (d *discardSink) WriteMeta(ctx context.Context, _ core.RunMeta) error {
	return ctx.Err()
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !cmd.Flags().Changed("peak-lists") {
		validateInput.noPeaks = true
	}
	if err := validateInput.apply(cmd); err != nil {
		return err
	}

	modDB, err := cfg.ModDatabase()
	if err != nil {
		return err
	}
	in, err := openInput(path, modDB)
	if err != nil {
		return err
	}
	defer in.Close()

	pool := peakPool(path)
	if pool != nil {
		defer pool.Close()
	}

	check := normalize.NewMassCheck(in.source, modDB, massTolerance, logger)
	sink := &discardSink{}
	n := normalize.New(normalizerConfig("validate", in, pool, modDB), sink)
	if err := n.Run(cmd.Context(), check); err != nil {
		return fmt.Errorf("%s is not valid: %w", path, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, statsTable(n.Stats(), n.Registry().Len()))
	fmt.Fprintf(out, "m/z checked: %d, mismatches: %d\n", check.Checked(), check.Mismatches())
	fmt.Fprintf(out, "%s is valid (%d records in %d batches)\n", path, sink.records, sink.batches)
	return nil
}
