package cmd

import (
	"github.com/spf13/cobra"
)

var jsonLog bool

var rootCmd = &cobra.Command{
	Use:   "newsagent",
	Short: "newsagent - 新聞問答助理",
	Long: `newsagent 是一個以新聞資料庫為根據的問答服務。
它從 RSS 收錄文章、建立向量索引，並透過訊息佇列回答問題，
每個答案都附上可追溯的新聞來源。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "emit logs as JSON")
}
