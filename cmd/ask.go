package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/koopa0/newsagent/internal/rpc"
)

var askTimeout int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Send one question through the queue and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askTimeout, "timeout", 0, "per-request timeout in seconds")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	client, err := rpc.NewClient(rpc.ClientConfig{
		URL:           cfg.BrokerURL,
		RequestQueue:  cfg.RequestQueue,
		ResponseQueue: cfg.ResponseQueue,
		UseReplyQueue: cfg.UseReplyQueue,
	}, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	question := strings.Join(args, " ")
	resp, err := client.Ask(context.Background(), rpc.Request{
		Prompt:     question,
		TimeoutSec: askTimeout,
	})
	if err != nil {
		return fmt.Errorf("asking %q: %w", question, err)
	}
	if resp.Status != rpc.StatusSuccess {
		return fmt.Errorf("worker error: %s", resp.Error)
	}

	fmt.Println(resp.Response)
	if len(resp.Suggestions) > 0 {
		fmt.Println()
		fmt.Println("您可能還想問：")
		for _, s := range resp.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}
