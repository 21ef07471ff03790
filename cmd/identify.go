package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Find who the first face in an image belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sig, err := a.coordinator.EncodeImage(ctx, data)
	if err != nil {
		return err
	}

	res, ok, err := a.coordinator.Identify(ctx, sig)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case ok:
		fmt.Fprintf(out, "%s (distance %.3f)\n", res.MatchedName, res.Distance)
	case res.MatchedName != "":
		fmt.Fprintf(out, "Unknown face (closest: %s at %.3f, threshold %.2f)\n", res.MatchedName, res.Distance, a.coordinator.Threshold())
	default:
		fmt.Fprintln(out, "Unknown face (no identities enrolled)")
	}
	return nil
}
