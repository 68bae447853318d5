package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// addJSONFlag registers the --json switch shared by the listing commands.
func addJSONFlag(cmd *cobra.Command, target *bool) {
	cmd.Flags().BoolVar(target, "json", false, "Print JSON instead of a table")
}

// writeJSON prints v as indented JSON. Series titles are printed verbatim, so
// HTML escaping is off.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	return nil
}
