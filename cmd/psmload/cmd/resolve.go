package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/peaklist"
)

var (
	resolveIDFormat string
	resolveFormat   string
	resolvePeaks    bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [peak list] [spectrum id]...",
	Short: "Look up spectra in a peak-list file",
	Long: `Resolve spectrum identifiers against an MGF, MS2 or mzML file and print the
precursor and peak count of each scan.

Examples:
  psmload resolve run1.mgf 0 1 2
  psmload resolve run1.mzML "controllerType=0 controllerNumber=1 scan=12" --id-format thermo`,
	Args: cobra.MinimumNArgs(2),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveIDFormat, "id-format", "index", "Spectrum id format: index, scan, thermo, native, single or a PSI-MS accession")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "", "Peak-list format: mgf, ms2, mzml (default: from extension)")
	resolveCmd.Flags().BoolVar(&resolvePeaks, "peaks", false, "Print the peak list of each scan")
}

func runResolve(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, err := peaklist.FormatForFile(path)
	if resolveFormat != "" {
		format, err = peaklist.ParseFormat(resolveFormat)
	}
	if err != nil {
		return err
	}
	idFormat := peaklist.ParseIDFormat(resolveIDFormat)

	r, err := peaklist.Open(path, format, idFormat, peaklist.WithFilter(cfg.FilterConfig()))
	if err != nil {
		return err
	}
	defer r.Close()
	logger.Debug("peak list indexed",
		"path", path,
		"spectra", r.Len(),
		"id_format", idFormat.String(),
		"accession", idFormat.Accession(),
	)

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(args)-1)
	for _, raw := range args[1:] {
		key, err := peaklist.ResolveSpectrumID(raw, idFormat, format == peaklist.FormatStructured)
		if err != nil {
			return err
		}
		scan, err := r.Scan(raw)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			raw,
			key.String(),
			strconv.FormatFloat(scan.PrecursorMZ, 'f', -1, 64),
			strconv.Itoa(scan.PrecursorCharge),
			strconv.Itoa(len(scan.Peaks)),
		})
		if resolvePeaks {
			fmt.Fprintf(out, "# %s\n%s\n", raw, scan.PeakList)
		}
	}
	fmt.Fprintln(out, renderTable([]string{"id", "key", "precursor m/z", "charge", "peaks"}, rows))
	return nil
}
