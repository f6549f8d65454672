package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smartpdf/internal/common"
	"smartpdf/internal/textops"
)

func newExtractTextCmd() *cobra.Command {
	var (
		output        string
		noPageMarkers bool
	)

	cmd := &cobra.Command{
		Use:   "extract-text <input.pdf>",
		Short: "Extract text from a PDF to a plain-text file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := a.codec.Decode(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer doc.Close()

			handler := textops.NewHandler(a.logger)
			result, err := handler.ExtractText(cmd.Context(), doc, !noPageMarkers)
			if err != nil {
				return err
			}

			outputPath := defaultOutputPath(args[0], output, ".txt")
			if err := os.WriteFile(outputPath, []byte(result.Text), 0644); err != nil {
				return err
			}

			fmt.Printf("Extracted %d characters from %d of %d pages to %s\n",
				result.TotalCharacters, result.PagesWithText, result.TotalPages, outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: input.txt)")
	cmd.Flags().BoolVar(&noPageMarkers, "no-page-markers", false, "omit page separator lines")
	return cmd
}

func newRemoveTextCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "remove-text <input.pdf>",
		Short: "Produce a copy of the PDF with its text layer removed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			doc, err := a.codec.Decode(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer doc.Close()

			handler := textops.NewHandler(a.logger)
			result, err := handler.RemoveText(cmd.Context(), doc, int64(len(data)))
			if err != nil {
				return err
			}

			outputPath := defaultOutputPath(args[0], output, "_notext.pdf")
			if err := os.WriteFile(outputPath, result.Data, 0644); err != nil {
				return err
			}

			fmt.Printf("Text removed: %s -> %s (%s)\n",
				common.FormatSize(result.OriginalSize),
				common.FormatSize(result.NewSize),
				outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: input_notext.pdf)")
	return cmd
}
