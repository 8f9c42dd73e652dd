package cli

import (
	"errors"
	"fmt"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/internal/importclient"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importFlags       fileFlags
	importIntegration string
	importServer      string
	importToken       string
	importChunkSize   int
	importNotify      string
	importTimeout     time.Duration
	importNoStream    bool
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate a CSV file and import its accepted rows",
	Example: `  reviewctl import reviews.csv --integration 7d1c... --token $REVIEW_HUB_TOKEN
  reviewctl import export.csv --integration 7d1c... --map provider=source --max-error-rate 0.02`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		integrationID, err := uuid.Parse(importIntegration)
		if err != nil {
			return fmt.Errorf("--integration must be a UUID: %w", err)
		}
		if importChunkSize < 1 || importChunkSize > 5000 {
			return errors.New("--chunk-size must be between 1 and 5000")
		}
		server := importServer
		if server == "" {
			server = config.GetEnv("REVIEW_HUB_SERVER", "http://localhost:8080")
		}
		tok := importToken
		if tok == "" {
			tok = config.GetEnv("REVIEW_HUB_TOKEN")
		}
		if tok == "" {
			return errors.New("no access token: pass --token or set REVIEW_HUB_TOKEN")
		}

		policy, err := importFlags.policy()
		if err != nil {
			return err
		}
		overrides, err := mappingOverrides(importFlags.mappingFile, importFlags.maps)
		if err != nil {
			return err
		}
		src, err := importclient.FileSource(args[0])
		if err != nil {
			return err
		}

		submitter := importclient.NewHTTPSubmitter(server, tok, importTimeout)
		var watcher importclient.Watcher
		if !importNoStream {
			watcher = importclient.WSWatcher{BaseURL: server, Token: tok}
		}

		store := importclient.NewStore()
		printer := &progressPrinter{w: cmd.ErrOrStderr(), stage: importclient.StageUpload}
		unsubscribe := store.Subscribe(printer.update)
		defer unsubscribe()

		o := importclient.NewOrchestrator(store, submitter, watcher, importclient.Options{
			IntegrationID: integrationID,
			ChunkSize:     importChunkSize,
			Policy:        policy,
			Overrides:     overrides,
			NotifyEmail:   importNotify,
			MaxBytes:      maxUploadBytes(),
		})

		config.Logger.Debug("Starting import",
			zap.String("file", src.Name),
			zap.String("server", submitter.BaseURL()),
			zap.String("integration_id", integrationID.String()),
		)

		results, err := o.Run(cmd.Context(), src)
		out := cmd.OutOrStdout()
		if st := store.GetState(); st.Summary != nil {
			renderSummary(out, *st.Summary, policy)
		}
		if err != nil {
			if errors.Is(err, importclient.ErrImportBlocked) {
				return exitCode(2)
			}
			return err
		}

		renderResults(out, results)
		switch results.JobStatus {
		case models.ImportJobCompleted:
			return nil
		case models.ImportJobCompletedWithErrors:
			return exitCode(3)
		default:
			return exitCode(1)
		}
	},
}

func init() {
	importFlags.register(importCmd)
	importCmd.Flags().StringVar(&importIntegration, "integration", "", "integration id the reviews belong to (required)")
	importCmd.Flags().StringVar(&importServer, "server", "", "review-hub base URL (default $REVIEW_HUB_SERVER or http://localhost:8080)")
	importCmd.Flags().StringVar(&importToken, "token", "", "bearer token (default $REVIEW_HUB_TOKEN)")
	importCmd.Flags().IntVar(&importChunkSize, "chunk-size", importclient.DefaultChunkSize, "rows per request")
	importCmd.Flags().StringVar(&importNotify, "notify", "", "email address that receives the error report")
	importCmd.Flags().DurationVar(&importTimeout, "timeout", time.Minute, "per request timeout")
	importCmd.Flags().BoolVar(&importNoStream, "poll", false, "poll for progress instead of using the websocket stream")
	_ = importCmd.MarkFlagRequired("integration")
}
