package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/consentscan/internal/config"
)

type commandContext struct {
	logLevelFlag *string
	open         backendOpener

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(logLevelFlag *string, open backendOpener) *commandContext {
	return &commandContext{
		logLevelFlag: logLevelFlag,
		open:         open,
	}
}

// ensureConfig loads the environment configuration once and installs the
// JSON logger on the command's stderr.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}

		level := cfg.Server.SlogLevel()
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			if err := level.UnmarshalText([]byte(strings.TrimSpace(*c.logLevelFlag))); err != nil {
				c.configErr = fmt.Errorf("invalid --log-level %q", *c.logLevelFlag)
				return
			}
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		})))

		c.config = cfg
	})
	return c.config, c.configErr
}

// withBackends opens the record store and queue for the duration of fn.
func (c *commandContext) withBackends(ctx context.Context, fn func(*backends) error) error {
	if c.config == nil {
		return fmt.Errorf("configuration not loaded")
	}
	b, err := c.open(ctx, c.config)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
