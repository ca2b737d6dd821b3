package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/newsagent/internal/app"
	"github.com/koopa0/newsagent/internal/article"
)

var loadCmd = &cobra.Command{
	Use:   "load [file.json]",
	Short: "Ingest articles from a JSON file into the database",
	Long: `Ingest articles from a JSON file. The file holds an array of objects
with title, content, link, pub_date and source fields. Duplicate links and
same-day duplicate titles are skipped. Each stored article is enriched,
chunked, embedded and indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

type loadArticle struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Link    string `json:"link"`
	PubDate string `json:"pub_date"`
	Source  string `json:"source"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var input []loadArticle
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	ctx := context.Background()
	application, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	var stored, skipped, failed int
	for _, in := range input {
		ok, err := application.Store.Store(ctx, article.Article{
			Title:   in.Title,
			Content: in.Content,
			Link:    in.Link,
			PubDate: in.PubDate,
			Source:  in.Source,
		})
		switch {
		case err != nil:
			failed++
			logger.Warn("store failed", "link", in.Link, "error", err)
		case ok:
			stored++
		default:
			skipped++
		}
	}

	fmt.Printf("stored %d, skipped %d duplicates, %d failed\n", stored, skipped, failed)
	return nil
}
