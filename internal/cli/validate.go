package cli

import (
	"fmt"

	"review-hub-backend/config"
	"review-hub-backend/internal/importclient"
	"review-hub-backend/internal/reviewcsv"

	"github.com/spf13/cobra"
)

// Flags shared by validate and import.
type fileFlags struct {
	maps         []string
	mappingFile  string
	maxErrorRate float64
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.maps, "map", nil, "map a field to a header, field=header (repeatable, empty header ignores)")
	cmd.Flags().StringVar(&f.mappingFile, "mapping-file", "", "YAML file with a columns: {field: header} block")
	cmd.Flags().Float64Var(&f.maxErrorRate, "max-error-rate", 0, "tolerated share of rejected rows, e.g. 0.02 (0 blocks on any error)")
}

func (f *fileFlags) policy() (reviewcsv.Policy, error) {
	if f.maxErrorRate < 0 || f.maxErrorRate > 1 {
		return reviewcsv.Policy{}, fmt.Errorf("--max-error-rate must be between 0 and 1")
	}
	return reviewcsv.Policy{MaxErrorRate: f.maxErrorRate}, nil
}

var validateFlags fileFlags

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a CSV file without importing it",
	Example: `  reviewctl validate reviews.csv
  reviewctl validate export.csv --map provider=source --map created_at="Review Date"
  reviewctl validate export.csv --mapping-file mapping.yaml --max-error-rate 0.02`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := validateFlags.policy()
		if err != nil {
			return err
		}
		overrides, err := mappingOverrides(validateFlags.mappingFile, validateFlags.maps)
		if err != nil {
			return err
		}
		src, err := importclient.FileSource(args[0])
		if err != nil {
			return err
		}

		o := importclient.NewOrchestrator(importclient.NewStore(), nil, nil, importclient.Options{
			Policy:    policy,
			Overrides: overrides,
			MaxBytes:  maxUploadBytes(),
		})
		summary, err := o.Validate(cmd.Context(), src)
		out := cmd.OutOrStdout()
		if st := o.Store().GetState(); st.Mapping != nil {
			renderMapping(out, st.Mapping)
		}
		if err != nil {
			return err
		}

		renderSummary(out, summary, policy)
		if !policy.Allows(summary) {
			return exitCode(2)
		}
		return nil
	},
}

// maxUploadBytes is the larger of the two upload limits. The layout is only
// known once the header has been read; the server applies the exact one.
func maxUploadBytes() int64 {
	cfg := config.LoadIngestionConfig()
	return max(cfg.MaxFileBytes, cfg.SimpleMaxFileBytes)
}

func init() {
	validateFlags.register(validateCmd)
}
