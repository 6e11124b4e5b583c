package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/MimeLyc/video-uploader/internal/app"
	"github.com/MimeLyc/video-uploader/internal/config"
	"github.com/MimeLyc/video-uploader/internal/errs"
)

type commandContext struct {
	envFlag     *string
	accountFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	app      *app.App
	closeLog func() error
}

func newCommandContext(envFlag, accountFlag *string) *commandContext {
	return &commandContext{
		envFlag:     envFlag,
		accountFlag: accountFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if v := strings.TrimSpace(*c.envFlag); v != "" {
			_ = os.Setenv("ENV_FILE", v)
		}
		if v := strings.TrimSpace(*c.accountFlag); v != "" {
			_ = os.Setenv("ACCOUNT_FILE", v)
		}
		cfg, err := config.NewFromEnv()
		if err != nil {
			c.configErr = err
			return
		}
		closeLog, err := app.InitLogging(cfg.System)
		if err != nil {
			c.configErr = err
			return
		}
		c.closeLog = closeLog
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureApp opens the object store and catalog once per process.
func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *commandContext) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.closeLog != nil {
		_ = c.closeLog()
		c.closeLog = nil
	}
	return err
}

// report logs err with operator advice and hands it back for cobra to print.
func report(err error) error {
	if err != nil {
		errs.Report(err)
	}
	return err
}
