package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/client/cli"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	args := flagx.Positional(os.Args[1:], []string{"-a", "-s", "-t", "-c", "-config"})

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	err = app.Run(ctx, args)
	_ = app.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
