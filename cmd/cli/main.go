package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/ucenter-gateway/internal/app"
	"github.com/dmitrijs2005/ucenter-gateway/internal/cli"
	"github.com/dmitrijs2005/ucenter-gateway/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	a, err := app.NewApp(ctx, cfg, os.Stderr)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer a.Close()

	cli.NewApp(a.Resolver(), a.Issuer(), a.Remote(), os.Stdin, os.Stdout).Root(ctx)

}
