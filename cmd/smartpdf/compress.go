package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smartpdf/internal/common"
	"smartpdf/internal/compression"
	"smartpdf/internal/jobs"
)

const pollInterval = 200 * time.Millisecond

func newCompressCmd() *cobra.Command {
	var (
		target      string
		output      string
		tolerance   string
		extractText bool
		removeText  bool
		verbose     bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "compress <input.pdf>",
		Short: "Compress a PDF file to a target size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(verbose)
			if err != nil {
				return err
			}
			defer a.close()

			targetBytes, err := common.ParseSize(target)
			if err != nil {
				return err
			}

			inputPath := args[0]
			outputPath := defaultOutputPath(inputPath, output, "_compressed.pdf")

			snapshot, err := runJob(cmd.Context(), a, inputPath, jobs.Request{
				Filename:    filepath.Base(inputPath),
				TargetBytes: targetBytes,
				Mode:        compression.ToleranceMode(tolerance),
				ExtractText: extractText,
				RemoveText:  removeText,
			}, !jsonOutput)
			if err != nil {
				return err
			}

			if snapshot.Status != jobs.StatusCompleted {
				return fmt.Errorf("compression %s: %s", snapshot.Status, snapshot.Error)
			}

			if err := collectArtifacts(a, snapshot.ID, outputPath, extractText, removeText); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(snapshot.Result)
			}
			printResult(snapshot.Result, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target file size (e.g. 5MB, 800KB)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "tolerance mode: strict or best-possible")
	cmd.Flags().BoolVarP(&extractText, "extract-text", "e", false, "extract text to a separate .txt file")
	cmd.Flags().BoolVarP(&removeText, "remove-text", "r", false, "also produce a text-free PDF")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output results as JSON")
	cmd.MarkFlagRequired("target")

	return cmd
}

func newBatchCmd() *cobra.Command {
	var (
		target     string
		outputDir  string
		tolerance  string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "batch <input.pdf>...",
		Short: "Batch compress multiple PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			targetBytes, err := common.ParseSize(target)
			if err != nil {
				return err
			}

			results := make(map[string]*jobs.Result, len(args))
			failures := 0
			for _, inputPath := range args {
				outputPath := batchOutputPath(inputPath, outputDir)

				snapshot, err := runJob(cmd.Context(), a, inputPath, jobs.Request{
					Filename:    filepath.Base(inputPath),
					TargetBytes: targetBytes,
					Mode:        compression.ToleranceMode(tolerance),
				}, false)
				if err != nil || snapshot.Status != jobs.StatusCompleted {
					failures++
					if !jsonOutput {
						fmt.Printf("%s: failed\n", inputPath)
					}
					continue
				}
				if err := collectArtifacts(a, snapshot.ID, outputPath, false, false); err != nil {
					failures++
					continue
				}
				results[inputPath] = snapshot.Result
				if !jsonOutput {
					fmt.Printf("%s: %s -> %s\n", inputPath,
						common.FormatSize(snapshot.Result.OriginalSize),
						common.FormatSize(snapshot.Result.CompressedSize))
				}
			}

			if jsonOutput {
				if err := printJSON(results); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d files failed", failures, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "target file size (e.g. 5MB, 800KB)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "output directory (default: same as input)")
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "tolerance mode: strict or best-possible")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output results as JSON")
	cmd.MarkFlagRequired("target")

	return cmd
}

// runJob starts one job for the file and polls until it reaches a
// terminal state.
func runJob(ctx context.Context, a *app, inputPath string, req jobs.Request, showProgress bool) (jobs.Snapshot, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return jobs.Snapshot{}, err
	}

	jobID, err := a.service.StartJob(ctx, data, req)
	if err != nil {
		return jobs.Snapshot{}, err
	}

	lastStage := ""
	for {
		snapshot, err := a.service.GetJobStatus(jobID)
		if err != nil {
			return jobs.Snapshot{}, err
		}
		if showProgress && snapshot.Stage != lastStage {
			fmt.Printf("%s... %d%%\n", snapshot.Stage, snapshot.Progress)
			lastStage = snapshot.Stage
		}
		if snapshot.Status.Terminal() {
			return snapshot, nil
		}

		select {
		case <-ctx.Done():
			a.service.CancelJob(jobID)
			return jobs.Snapshot{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// collectArtifacts copies job outputs from the working directory to the
// caller-visible paths.
func collectArtifacts(a *app, jobID, outputPath string, extractText, removeText bool) error {
	compressed, err := a.service.GetArtifact(jobID, jobs.ArtifactCompressedPDF)
	if err != nil {
		return err
	}
	if err := common.CopyFile(compressed, outputPath); err != nil {
		return err
	}

	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	if extractText {
		path, err := a.service.GetArtifact(jobID, jobs.ArtifactExtractedText)
		if err != nil {
			return err
		}
		if err := common.CopyFile(path, base+".txt"); err != nil {
			return err
		}
	}
	if removeText {
		path, err := a.service.GetArtifact(jobID, jobs.ArtifactNoTextPDF)
		if err != nil {
			return err
		}
		if err := common.CopyFile(path, base+"_notext.pdf"); err != nil {
			return err
		}
	}
	return nil
}

func printResult(result *jobs.Result, outputPath string) {
	fmt.Printf("\nOutput: %s\n", outputPath)
	fmt.Printf("Size: %s -> %s (%.1f%% reduction)\n",
		common.FormatSize(result.OriginalSize),
		common.FormatSize(result.CompressedSize),
		result.CompressionRatio)
	fmt.Printf("Estimated quality: %.0f/100, iterations: %d\n", result.Quality, result.Iterations)
	if !result.TargetAchieved {
		fmt.Printf("Target %s not reachable; this is the smallest achievable size\n",
			common.FormatSize(result.TargetSize))
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func defaultOutputPath(inputPath, output, suffix string) string {
	if output != "" {
		return output
	}
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + suffix
}

func batchOutputPath(inputPath, outputDir string) string {
	out := defaultOutputPath(inputPath, "", "_compressed.pdf")
	if outputDir == "" {
		return out
	}
	return filepath.Join(outputDir, filepath.Base(out))
}
