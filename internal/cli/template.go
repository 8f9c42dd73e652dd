package cli

import (
	"fmt"
	"io"
	"os"

	"review-hub-backend/internal/reviewcsv"

	"github.com/spf13/cobra"
)

var (
	templateSchema string
	templateOut    string
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a sample CSV with the expected headers",
	Example: `  reviewctl template
  reviewctl template --schema simplified -o reviews.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema := reviewcsv.ParseSchema(templateSchema)

		var w io.Writer = cmd.OutOrStdout()
		if templateOut != "" {
			f, err := os.Create(templateOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		if err := reviewcsv.WriteTemplate(w, schema); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		if templateOut != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), theme.successStyle().Render("Wrote "+templateOut))
		}
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateSchema, "schema", string(reviewcsv.SchemaFull), "template layout: full or simplified")
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "", "write to file instead of stdout")
}
