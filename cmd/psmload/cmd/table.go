package cmd

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ChrisMcGann/psmload/pkg/normalize"
)

// renderTable right-aligns every column after the first.
func renderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignRight
		if i == 0 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func statsTable(s normalize.Stats, modifications int) string {
	rows := [][]string{
		{"items", strconv.Itoa(s.Items)},
		{"spectra", strconv.Itoa(s.Spectra)},
		{"peptides", strconv.Itoa(s.Peptides)},
		{"peptide evidences", strconv.Itoa(s.Evidence)},
		{"identifications", strconv.Itoa(s.Identifications)},
		{"cross-links", strconv.Itoa(s.CrossLinks)},
		{"modifications", strconv.Itoa(modifications)},
		{"batches", strconv.Itoa(s.Batches)},
		{"warnings", strconv.Itoa(s.Warnings)},
	}
	return renderTable([]string{"record", "count"}, rows)
}
