package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"replywatch/internal/app"
	logx "replywatch/pkg/logx"
)

func main() {
	cliApp := &cli.App{
		Name:  "replywatch",
		Usage: "remind channel owners about client messages waiting too long for a reply",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to config file (YAML or JSON)",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "debug logging, including every fetched message",
			},
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run a single cycle and exit",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file loaded before the config (missing file is ignored)",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if f := c.String("env-file"); f != "" {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("env file %s: %w", f, err)
		}
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(app.Options{ConfigPath: c.String("config"), Debug: c.Bool("debug")})
	if err != nil {
		return err
	}
	log := a.Logger()

	if c.Bool("once") {
		rep, err := a.RunOnce(ctx)
		if err == nil {
			log.Info("single cycle done", logx.Int("evaluated", rep.Evaluated), logx.Int("reminded", rep.Reminded))
		}
		if stopErr := stop(a, app.StopOnceDone); err == nil {
			err = stopErr
		}
		return err
	}

	if err := a.Start(ctx); err != nil {
		_ = stop(a, app.StopFatalError)
		return err
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}
	if err := stop(a, reason); err != nil {
		return err
	}
	return a.Err()
}

func stop(a *app.App, reason app.StopReason) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Stop(ctx, reason)
}
