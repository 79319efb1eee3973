package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ChrisMcGann/psmload/pkg/writer/sqlite"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [database]",
	Short: "Summarize the uploads stored in a database",
	Long:  `Print per-upload record counts of a database written by convert.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		uploads, err := sqlite.Summarize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(uploads) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s holds no finished uploads\n", args[0])
			return nil
		}

		rows := make([][]string, 0, len(uploads))
		for _, u := range uploads {
			rows = append(rows, []string{
				u.UploadID,
				u.CreatedAt,
				strconv.Itoa(u.Spectra),
				strconv.Itoa(u.Peptides),
				strconv.Itoa(u.Evidence),
				strconv.Itoa(u.Identifications),
				strconv.Itoa(u.CrossLinks),
				strconv.Itoa(u.Modifications),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"upload", "created", "spectra", "peptides", "evidences", "identifications", "cross-links", "modifications"},
			rows,
		))
		return nil
	},
}
