package main

import (
	"context"
	"fmt"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	applog "github.com/Tyrowin/aniconnect/internal/log"
	"github.com/Tyrowin/aniconnect/internal/server"
)

// setup loads the environment and assembles the server. The returned logger
// is usable even when err is set.
func setup() (*server.Server, *server.Config, zerolog.Logger, error) {
	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return nil, nil, applog.New("development"), fmt.Errorf("load configuration: %w", err)
	}

	logger := applog.New(cfg.Environment)
	srv, err := server.New(*cfg, logger)
	if err != nil {
		return nil, cfg, logger, fmt.Errorf("build server: %w", err)
	}
	return srv, cfg, logger, nil
}

func main() {
	srv, cfg, logger, err := setup()
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	zlog.Logger = logger

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("env", cfg.Environment).
		Msg("AniConnect server started; press Ctrl+C to shut down")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"server": func(ctx context.Context) error {
				logger.Info().Msg("graceful shutdown initiated")
				return srv.Shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	logger.Info().Int("code", exitCode).Msg("server exited")
	os.Exit(exitCode)
}
