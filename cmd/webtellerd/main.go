package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/webteller/webteller/server"
)

func main() {
	app := &cli.App{
		Name:  "webtellerd",
		Usage: "relay an interactive console program to the browser",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Usage:   "TCP port for the HTTP server to listen on.",
				Value:   8080,
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host address for the HTTP server to bind to.",
				Value: "0.0.0.0",
			},
			&cli.StringFlag{
				Name:  "command",
				Usage: "The console program to spawn for each session.",
				Value: "teller",
			},
			&cli.StringSliceFlag{
				Name:  "arg",
				Usage: "Argument passed to the console program (repeatable).",
			},
			&cli.StringSliceFlag{
				Name:  "env",
				Usage: "Extra KEY=VALUE environment for the console program (repeatable).",
			},
			&cli.StringFlag{
				Name:    "creds",
				Usage:   "Credential blob written verbatim to the creds file before each session's program starts.",
				EnvVars: []string{"CREDS"},
			},
			&cli.StringFlag{
				Name:  "creds-file",
				Usage: "Path the credential blob is written to.",
				Value: "creds.json",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Minimum log level. One of [debug,info,warn,error].",
				Value: "info",
			},
		},
		Action: func(ctx *cli.Context) error {
			level, err := zapcore.ParseLevel(ctx.String("log-level"))
			if err != nil {
				return fmt.Errorf("parsing log level: %w", err)
			}

			srv, err := server.New(
				server.WithListenAddr(fmt.Sprintf("%s:%d", ctx.String("host"), ctx.Int("port"))),
				server.WithCommand(ctx.String("command"), ctx.StringSlice("arg")...),
				server.WithEnv(ctx.StringSlice("env")),
				server.WithCreds(ctx.String("creds"), ctx.String("creds-file")),
				server.WithLogLevel(level),
			)
			if err != nil {
				return fmt.Errorf("building server: %w", err)
			}

			return srv.Run()
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
