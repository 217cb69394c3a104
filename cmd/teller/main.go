package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/webteller/webteller/bank"
)

func main() {
	app := &cli.App{
		Name:  "teller",
		Usage: "interactive banking console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "Path to the SQLite account database.",
				Value:   "bank.db",
				EnvVars: []string{"BANK_DB"},
			},
		},
		Action: func(ctx *cli.Context) error {
			store, err := bank.Open(ctx.Context, ctx.String("db"))
			if err != nil {
				return fmt.Errorf("opening account store: %w", err)
			}
			defer store.Close()

			return bank.NewREPL(store, os.Stdin, os.Stdout).Run(ctx.Context)
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
