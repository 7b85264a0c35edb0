package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var configPath string

func main() {
	app := cli.NewApp()
	app.Name = "backtester"
	app.Usage = "moving average crossover backtester for daily stock prices"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a config file; defaults to ./backtester.yaml or $HOME/.backtester/backtester.yaml",
			Destination: &configPath,
		},
	}
	app.Commands = []*cli.Command{
		serveCommand,
		fetchCommand,
		runCommand,
		reportCommand,
		historyCommand,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
