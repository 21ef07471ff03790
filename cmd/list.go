package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/facematch"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled names with their record counts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("json", false, "Print the list as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.store.ListNames(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	groups := facematch.GroupNames(names)

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)
	}

	if len(names) == 0 {
		fmt.Fprintln(out, "No identities enrolled")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tRECORDS\tSPELLINGS")
	total := 0
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\t%s\n", g.Name, g.Count, strings.Join(g.Spellings, ", "))
		total += g.Count
	}
	w.Flush()

	fmt.Fprintf(out, "\nTotal records: %d\n", total)
	return nil
}
