package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/enroll"
)

var preloadCmd = &cobra.Command{
	Use:   "preload [image]",
	Short: "Enroll faces from reference images",
	Long: `Enroll the first face found in a reference image under the given name.
A face that matches an already known signature is reported and not stored again.

With --dir every image in the directory is loaded and the file name without
extension is used as the person's name.

Examples:
  # Enroll a single image
  face-registry preload people/alice.jpg --name "Alice"

  # Enroll a directory of images (alice.jpg, bob.png, ...)
  face-registry preload --dir people/ --concurrency 4`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreload,
}

func init() {
	rootCmd.AddCommand(preloadCmd)

	preloadCmd.Flags().String("name", "", "Name to enroll the face under (single image)")
	preloadCmd.Flags().String("dir", "", "Directory of reference images named after the person")
	preloadCmd.Flags().Int("concurrency", 4, "Number of images encoded in parallel")
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// preloadJob is one image to enroll.
type preloadJob struct {
	Path string
	Name string
}

// collectPreloadJobs lists images in dir, using each file stem as the name.
func collectPreloadJobs(dir string) ([]preloadJob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var jobs []preloadJob
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !imageExtensions[ext] {
			continue
		}
		jobs = append(jobs, preloadJob{
			Path: filepath.Join(dir, e.Name()),
			Name: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, nil
}

// preloadStats counts outcomes of a bulk preload.
type preloadStats struct {
	mu       sync.Mutex
	outcomes map[enroll.Outcome]int
	failures []preloadFailure
}

type preloadFailure struct {
	Path string
	Err  error
}

func (s *preloadStats) record(job preloadJob, res enroll.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcomes == nil {
		s.outcomes = make(map[enroll.Outcome]int)
	}
	s.outcomes[res.Outcome]++
	if res.Outcome == enroll.OutcomeFailed && err != nil {
		s.failures = append(s.failures, preloadFailure{Path: job.Path, Err: err})
	}
}

func runPreload(cmd *cobra.Command, args []string) error {
	name := mustGetString(cmd, "name")
	dir := mustGetString(cmd, "dir")
	concurrency := mustGetInt(cmd, "concurrency")

	if (dir == "") == (len(args) == 0) {
		return errors.New("specify either an image path or --dir")
	}
	if dir == "" && strings.TrimSpace(name) == "" {
		return errors.New("--name is required when enrolling a single image")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if dir == "" {
		res, err := a.coordinator.PreloadImage(ctx, args[0], name)
		fmt.Fprintln(cmd.OutOrStdout(), describeResult(res))
		if err != nil && !errors.Is(err, enroll.ErrNoSignatureFound) {
			return err
		}
		return nil
	}

	jobs, err := collectPreloadJobs(dir)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No images found")
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var (
		stats preloadStats
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, concurrency)

	for _, job := range jobs {
		wg.Add(1)
		go func(j preloadJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Encoding runs in parallel, the coordinator serializes the match and insert.
			res, err := a.coordinator.PreloadImage(ctx, j.Path, j.Name)
			stats.record(j, res, err)
			bar.Add(1)
		}(job)
	}
	wg.Wait()
	bar.Finish()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRegistered:         %d\n", stats.outcomes[enroll.OutcomeRegistered])
	fmt.Fprintf(out, "Already registered: %d\n", stats.outcomes[enroll.OutcomeAlreadyRegistered])
	fmt.Fprintf(out, "No face found:      %d\n", stats.outcomes[enroll.OutcomeNoSignatureFound])
	fmt.Fprintf(out, "Failed:             %d\n", stats.outcomes[enroll.OutcomeFailed])
	for _, f := range stats.failures {
		fmt.Fprintf(out, "  %s: %v\n", f.Path, f.Err)
	}

	// Storage errors abort the run with a non-zero exit, other failures are per image.
	for _, f := range stats.failures {
		if errors.Is(f.Err, database.ErrStorageUnavailable) {
			return f.Err
		}
	}
	return nil
}
