package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"showrunner/internal/pipeline"
)

// NewIngestCmd creates the ingest command. It accepts either flags for a
// single article or a JSON file with a batch of candidates.
func NewIngestCmd() *cobra.Command {
	var (
		groupID   string
		sourceRef string
		link      string
		title     string
		text      string
		published string
		batchFile string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest articles through dedup and the confidence router",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newFullApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx := context.Background()

			var candidates []pipeline.Candidate
			if batchFile != "" {
				data, err := os.ReadFile(batchFile)
				if err != nil {
					return fmt.Errorf("failed to read batch file: %w", err)
				}
				if err := json.Unmarshal(data, &candidates); err != nil {
					return fmt.Errorf("failed to parse batch file: %w", err)
				}
			} else {
				if groupID == "" || link == "" || title == "" {
					return fmt.Errorf("either --batch or --group, --link and --title are required")
				}
				publishedAt := time.Now().UTC()
				if published != "" {
					publishedAt, err = time.Parse(time.RFC3339, published)
					if err != nil {
						return fmt.Errorf("invalid --published time: %w", err)
					}
				}
				candidates = []pipeline.Candidate{{
					GroupID:   groupID,
					SourceRef: sourceRef,
					Link:      link,
					Title:     title,
					Text:      text,
					Published: publishedAt,
				}}
			}

			if app.Ingestor.ProductionPaused(ctx) {
				fmt.Println("Note: a generation run is in flight; ingesting anyway (cooperative pause applies to queued review work).")
			}

			for _, candidate := range candidates {
				result, err := app.Ingestor.Ingest(ctx, candidate)
				if err != nil {
					return err
				}
				switch result.Status {
				case pipeline.StatusDuplicate:
					fmt.Printf("duplicate  %s\n", candidate.Link)
				default:
					fmt.Printf("ingested   %s -> collection %s (%s, %d articles)\n",
						candidate.Link, result.Collection.ID,
						result.Collection.Status, result.Collection.ArticleCount)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "group id the article belongs to")
	cmd.Flags().StringVar(&sourceRef, "source", "", "source/feed reference")
	cmd.Flags().StringVar(&link, "link", "", "article URL")
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVar(&text, "text", "", "article text content")
	cmd.Flags().StringVar(&published, "published", "", "publish time (RFC3339)")
	cmd.Flags().StringVar(&batchFile, "batch", "", "JSON file with an array of candidates")
	return cmd
}
