package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagesift/pagesift/internal/detect"
)

var flagDetectAll bool

var detectCmd = &cobra.Command{
	Use:   "detect <url>",
	Short: "Print the content-type classification for a URL",
	Long: `Detect runs the classification strategies against a URL without
downloading or processing the full resource.

Examples:
  pagesift detect https://example.com/report.pdf
  pagesift detect --all https://example.com/data`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := detect.DefaultRegistry()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if flagDetectAll {
			outcomes := registry.DetectAll(cmd.Context(), args[0])
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", o.Strategy, o.Err)
					continue
				}
				if err := enc.Encode(o.Classification); err != nil {
					return err
				}
			}
			return nil
		}
		return enc.Encode(registry.Detect(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().BoolVar(&flagDetectAll, "all", false, "Run every strategy and print each outcome")
}
