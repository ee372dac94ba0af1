// cmd_config.go - the config command: prints every recognized environment
// variable, its current value, and its description.
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kvsim/kvsim/envconfig"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "List recognized environment variables and their current values",
		RunE:  ConfigHandler,
	}
}

// ConfigHandler implements the config command.
func ConfigHandler(cmd *cobra.Command, args []string) error {
	envVars := envconfig.AsMap()

	names := make([]string, 0, len(envVars))
	for name := range envVars {
		names = append(names, name)
	}
	sort.Strings(names)

	data := make([][]string, 0, len(names))
	for _, name := range names {
		e := envVars[name]
		data = append(data, []string{e.Name, formatValue(e.Value), e.Description})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"NAME", "VALUE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func formatValue(v any) string {
	return fmt.Sprintf("%v", v)
}
