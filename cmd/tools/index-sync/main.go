// cmd/tools/index-sync/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"answer-gateway/internal/chat/clock"
	"answer-gateway/internal/chat/poller"
	"answer-gateway/internal/common/config"
	"answer-gateway/internal/common/logger"
	"answer-gateway/internal/completion"
	"answer-gateway/internal/index"
)

var (
	cfgFile     string
	verbose     bool
	indexID     string
	assistantID string
	concurrency int
)

// newAPI is replaced in tests.
var newAPI = func(cfg *config.Config, log logger.Logger) index.API {
	return completion.NewClient(completion.LoadConfig(cfg.Completion), log)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "index-sync",
		Short: "Synchronise a folder of PDF documents with the document index",
		Long: `index-sync uploads local PDF documents to the remote document index used
for grounded answers.

Example usage:
  index-sync sync ./docs                     # upload documents not yet indexed
  index-sync sync ./docs --force             # upload every document again
  index-sync sync ./docs --delete-removed    # also remove documents missing locally
  index-sync create ./docs --name "Library"  # create a new index from a folder`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&assistantID, "assistant", "", "assistant to point at the index (default from config)")
	root.PersistentFlags().IntVar(&concurrency, "concurrency", 4, "parallel uploads")

	root.AddCommand(newSyncCmd(), newCreateCmd())
	return root
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <dir>",
		Short: "Upload new documents to an existing index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, cfg, err := setup()
			if err != nil {
				return err
			}

			target := indexID
			if target == "" {
				target = cfg.Completion.IndexID
			}
			if strings.TrimSpace(target) == "" {
				return fmt.Errorf("no index id: set completion.index_id or pass --index")
			}

			force, _ := cmd.Flags().GetBool("force")
			deleteRemoved, _ := cmd.Flags().GetBool("delete-removed")

			summary, err := syncer.Run(cmd.Context(), args[0], target, options(cfg, force, deleteRemoved))
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&indexID, "index", "", "index id (default from config)")
	cmd.Flags().Bool("force", false, "upload documents even when already indexed")
	cmd.Flags().Bool("delete-removed", false, "remove indexed documents that are missing locally")
	return cmd
}

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <dir>",
		Short: "Create a new index and upload every document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, cfg, err := setup()
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			summary, err := syncer.Create(cmd.Context(), args[0], name, options(cfg, false, false))
			if summary != nil {
				printSummary(cmd.OutOrStdout(), summary)
				fmt.Fprintf(cmd.OutOrStdout(), "\nSet completion.index_id (or VECTOR_STORE_ID) to %s\n", summary.IndexID)
			}
			return err
		},
	}

	cmd.Flags().String("name", "Document Library", "name of the new index")
	return cmd
}

func setup() (*index.Syncer, *config.Config, error) {
	cfg, err := config.LoadForIndexSync(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log := logger.NewStructured(level, "console")

	return index.NewSyncer(newAPI(cfg, log), newPoller(cfg, log), log), cfg, nil
}

// newPoller waits on file batches, which get index.batch_deadline rather
// than the answer job deadline.
func newPoller(cfg *config.Config, log logger.Logger) *poller.Poller {
	return poller.New(
		config.GetDuration(cfg.Jobs.PollInterval),
		config.GetDuration(cfg.Index.BatchDeadline),
		clock.Real(),
		log,
	)
}

func options(cfg *config.Config, force, deleteRemoved bool) index.Options {
	assistant := assistantID
	if assistant == "" {
		assistant = cfg.Completion.AssistantID
	}
	return index.Options{
		Force:         force,
		DeleteRemoved: deleteRemoved,
		AssistantID:   assistant,
		Concurrency:   concurrency,
	}
}

func printSummary(w io.Writer, s *index.Summary) {
	fmt.Fprintf(w, "Index:     %s\n", s.IndexID)
	fmt.Fprintf(w, "Uploaded:  %d\n", s.Uploaded)
	fmt.Fprintf(w, "Skipped:   %d\n", len(s.Skipped))
	fmt.Fprintf(w, "Deleted:   %d\n", s.Deleted)
	if s.BatchStatus != "" {
		fmt.Fprintf(w, "Batch:     %s\n", s.BatchStatus)
	}
	for _, name := range s.DeleteFailed {
		fmt.Fprintf(w, "  could not delete %s\n", name)
	}
}
