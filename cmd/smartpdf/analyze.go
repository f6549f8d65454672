package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"smartpdf/internal/common"
	"smartpdf/internal/compression"
)

func newAnalyzeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <input.pdf>",
		Short: "Analyze a PDF and show its compression potential",
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

			analyzer := compression.NewAnalyzer(a.logger)
			profile, err := analyzer.Analyze(cmd.Context(), doc, int64(len(data)))
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(profile)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "File:\t%s\n", args[0])
			fmt.Fprintf(w, "Size:\t%s\n", common.FormatSize(profile.OriginalSize))
			fmt.Fprintf(w, "Pages:\t%d\n", profile.PageCount)
			fmt.Fprintf(w, "Type:\t%s\n", profile.Class)
			fmt.Fprintf(w, "Image area:\t%.1f%%\n", profile.ImageAreaFraction*100)
			fmt.Fprintf(w, "Images:\t%d (%s)\n", profile.ImageCount, common.FormatSize(profile.TotalImageBytes))
			fmt.Fprintf(w, "Text detected:\t%t\n", profile.HasText)
			fmt.Fprintf(w, "Embedded fonts:\t%t\n", profile.HasEmbeddedFonts)
			fmt.Fprintf(w, "Achievable range:\t%s - %s\n",
				common.FormatSize(profile.EstimatedMinSize),
				common.FormatSize(profile.EstimatedMaxSize))
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "output analysis as JSON")
	return cmd
}
