package main

import (
	"context"
	"errors"
	"log"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		var cfgErr *common.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("invalid configuration: %v", err)
		}
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}
