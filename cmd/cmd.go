package cmd

import (
	"fmt"
	"log/slog"

	"github.com/koopa0/newsagent/internal/config"
	"github.com/koopa0/newsagent/internal/log"
)

// bootstrap loads configuration and builds the process logger shared by all
// commands.
func bootstrap() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := log.New(log.Config{Level: slog.LevelInfo, JSON: jsonLog})
	return cfg, logger, nil
}
