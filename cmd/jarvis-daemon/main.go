package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"jarvis/internal/bootstrap"
	"jarvis/internal/config"
	"jarvis/internal/ipc"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	apiAddr := cli.StringP("api", "a", "", "HTTP API listen address (overrides JARVIS_API_ADDR)")
	noAPI := cli.Bool("no-api", false, "Disable the HTTP API")
	listen := cli.BoolP("listen", "L", false, "Start listening for the wake phrase at boot")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.Build(ctx, cfg, bootstrap.Options{
		SocketPath: *socket,
		APIAddr:    *apiAddr,
		NoAPI:      *noAPI,
		AutoListen: *listen,
	})
	if err != nil {
		log.Error("Failed to boot", "err", err)
		os.Exit(1)
	}
	defer services.Close()

	if err := services.Run(ctx); err != nil {
		log.Error("Daemon stopped", "err", err)
		services.Close()
		os.Exit(1)
	}
	log.Info("Shut down")
}
