package main

import (
	"context"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/seantiz/urlcheck/internal/api"
	"github.com/seantiz/urlcheck/internal/checker"
	"github.com/seantiz/urlcheck/internal/config"
	"github.com/seantiz/urlcheck/internal/engine"
	"github.com/seantiz/urlcheck/internal/exampleapp"
	"github.com/seantiz/urlcheck/internal/handler"
	"github.com/seantiz/urlcheck/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("urlcheck: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"origin", cfg.Scheme+"://"+cfg.Authority,
		"max_redirects", cfg.MaxRedirects,
		"check_timeout", cfg.CheckTimeout.String(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	app := exampleapp.New()
	chain := handler.NewChain(
		handler.NewRouteHandler(app, cfg.Scheme, cfg.Authority),
		handler.NewMountHandler(handler.NameMedia, cfg.MediaPrefix, mountRoot(cfg.MediaRoot, exampleapp.MediaFS())),
		handler.NewMountHandler(handler.NameStatic, cfg.StaticPrefix, mountRoot(cfg.StaticRoot, exampleapp.StaticFS())),
	)
	for _, h := range chain.List() {
		logger.Debug("handler registered", "name", h.Name, "prefix", h.Prefix, "fallback", h.Fallback)
	}

	local := checker.New(chain, checker.Config{
		Scheme:       cfg.Scheme,
		Authority:    cfg.Authority,
		MaxRedirects: cfg.MaxRedirects,
		Timeout:      cfg.CheckTimeout,
	}, logger)
	app.SetChecker(local)

	remote := checker.NewRemoteChecker(nil, cfg.UserAgent, logger)
	eng := engine.NewEngine(db, local, remote, logger)

	srv := api.NewServer(cfg.ListenAddr, db, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// mountRoot serves dir from disk when set and the embedded files otherwise.
func mountRoot(dir string, embedded fs.FS) fs.FS {
	if dir == "" {
		return embedded
	}
	return os.DirFS(dir)
}
