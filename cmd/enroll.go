package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/enroll"
	"github.com/kozaktomas/face-registry/internal/facematch"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll the face inside a region of a captured frame",
	Long: `Enroll the face inside a region of a frame captured by a camera loop.
The region is given in relative coordinates (x,y,width,height in 0-1), the
way face detectors report bounding boxes. When --name is omitted the name
is read from standard input.

Examples:
  face-registry enroll --frame frame.jpg --region 0.31,0.22,0.18,0.27
  face-registry enroll --frame frame.jpg --region 0.31,0.22,0.18,0.27 --name "Alice"`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("frame", "", "Captured frame image (JPEG, PNG or BMP)")
	enrollCmd.Flags().String("region", "", "Face region as x,y,w,h in relative coordinates")
	enrollCmd.Flags().String("name", "", "Name to enroll the face under (prompted when empty)")
	enrollCmd.MarkFlagRequired("frame")
	enrollCmd.MarkFlagRequired("region")
}

// promptName asks for a name until a non-empty one is entered or input ends.
func promptName(in io.Reader, out io.Writer) (string, error) {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Enter the name for this face: ")
		line, err := reader.ReadString('\n')
		if name := facematch.CleanName(line); name != "" {
			return name, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", enroll.ErrEmptyName
			}
			return "", fmt.Errorf("failed to read name: %w", err)
		}
		fmt.Fprintln(out, "Name must not be empty")
	}
}

func runEnroll(cmd *cobra.Command, args []string) error {
	region, err := facematch.ParseRegion(mustGetString(cmd, "region"))
	if err != nil {
		return err
	}

	framePath := mustGetString(cmd, "frame")
	frame, err := os.ReadFile(framePath)
	if err != nil {
		return fmt.Errorf("failed to read frame: %w", err)
	}

	name := strings.TrimSpace(mustGetString(cmd, "name"))
	if name == "" {
		if name, err = promptName(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.coordinator.EnrollRegion(ctx, frame, region, name)
	fmt.Fprintln(cmd.OutOrStdout(), describeResult(res))
	if err != nil && !errors.Is(err, enroll.ErrNoSignatureFound) {
		return err
	}
	return nil
}
