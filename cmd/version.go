package cmd

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
)

// Build metadata variables, set by -ldflags at compile time.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, storage backends and signature layout",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), commitSHA())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// commitSHA prefers the ldflags value and falls back to the VCS stamp of the build.
func commitSHA() string {
	if CommitSHA != "unknown" {
		return CommitSHA
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return CommitSHA
}

func printVersion(w io.Writer, commit string) {
	fmt.Fprintf(w, "face-registry %s\n", Version)
	fmt.Fprintf(w, "  Commit:    %s\n", commit)
	fmt.Fprintf(w, "  Built:     %s\n", BuildDate)
	fmt.Fprintf(w, "  Backends:  %s\n", strings.Join(database.Backends(), ", "))
	fmt.Fprintf(w, "  Signature: v1, float64 little-endian, %d-d default\n", signature.DefaultDim)
}
