package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/koopa0/newsagent/internal/app"
)

var relatedLimit int

var relatedCmd = &cobra.Command{
	Use:   "related [article-id]",
	Short: "List articles related to a stored article",
	Long: `List articles related to a stored article, ranked by entity and
keyword overlap with a bonus for shared category.`,
	Args: cobra.ExactArgs(1),
	RunE: runRelated,
}

func init() {
	relatedCmd.Flags().IntVar(&relatedLimit, "limit", 5, "maximum related articles to list")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid article id %q: %w", args[0], err)
	}

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx := context.Background()
	application, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	related, err := application.Store.Related(ctx, id, relatedLimit)
	if err != nil {
		return err
	}
	if len(related) == 0 {
		fmt.Println("no related articles found")
		return nil
	}
	for _, r := range related {
		fmt.Printf("%6d  %.2f  [%s] %s\n", r.Article.ID, r.Score, r.Article.Category, r.Article.Title)
	}
	return nil
}
