package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/vaultkeeper/internal/client/cli"
	"github.com/dmitrijs2005/vaultkeeper/internal/client/client"
	"github.com/dmitrijs2005/vaultkeeper/internal/client/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, rest, err := config.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cli.Usage(os.Stderr)
		return 2
	}

	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.AccessToken)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	app := cli.NewApp(c, os.Stdout, os.Stdin)
	if err := app.Run(ctx, rest); err != nil {
		fmt.Fprintln(os.Stderr, "vaultctl:", err)
		if errors.Is(err, cli.ErrUsage) {
			cli.Usage(os.Stderr)
			return 2
		}
		return 1
	}
	return 0
}
