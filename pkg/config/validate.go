package config

import (
	"errors"
	"fmt"

	"github.com/ChrisMcGann/psmload/pkg/filter"
	"github.com/ChrisMcGann/psmload/pkg/peaklist"
	"github.com/ChrisMcGann/psmload/pkg/reader/csv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateInput(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	f := filter.Config{TopN: c.Filter.TopN, IntensityCutoff: c.Filter.IntensityCutoff}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := c.validateModifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateInput() error {
	if _, err := csv.ColumnSetByName(c.Input.ColumnSet); err != nil {
		return fmt.Errorf("input.column_set: %w", err)
	}
	if c.Input.PeptidePositionBase != 0 && c.Input.PeptidePositionBase != 1 {
		return fmt.Errorf("input.peptide_position_base must be 0 or 1, got %d", c.Input.PeptidePositionBase)
	}
	if c.Input.IDFormat != "" && peaklist.ParseIDFormat(c.Input.IDFormat) == peaklist.IDFormatUnknown &&
		c.Input.IDFormat != "fallback" {
		return fmt.Errorf("input.id_format %q is not a known spectrum id format", c.Input.IDFormat)
	}
	return nil
}

func (c *Config) validateOutput() error {
	if c.Output.BatchSize <= 0 {
		return errors.New("output.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateModifications() error {
	if c.Modifications.Precision < 0 || c.Modifications.Precision > 12 {
		return fmt.Errorf("modifications.precision must be between 0 and 12, got %d", c.Modifications.Precision)
	}
	if c.Modifications.MaxRenames <= 0 {
		return errors.New("modifications.max_renames must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console or json, got %q", c.Logging.Format)
	}
	return nil
}
