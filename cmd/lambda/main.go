package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/CedrosPay/txupdate/pkg/txservice"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := txservice.LoadConfig(os.Getenv("TXU_CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("config.load_failed")
	}

	app, err := txservice.NewApp(context.Background(), cfg,
		txservice.WithService("txupdate-lambda"),
		txservice.WithVersion(version),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("app.init_failed")
	}

	lambda.StartWithOptions(app.LambdaHandler(),
		lambda.WithEnableSIGTERM(func() {
			if err := app.Close(); err != nil {
				app.Logger.Error().Err(err).Msg("app.close_failed")
			}
		}),
	)
}
