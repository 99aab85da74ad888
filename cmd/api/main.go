package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skein.org/internal/auth"
	_ "skein.org/internal/auth/noauth"
	_ "skein.org/internal/auth/simple"
	"skein.org/internal/config"
	"skein.org/internal/httpapi"
	"skein.org/internal/obs"
	"skein.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	manager, err := auth.New(cfg.Get(config.KeyAuthManager), cfg)
	if err != nil {
		log.Fatalf("auth manager %q: %v", cfg.Get(config.KeyAuthManager), err)
	}

	ctx := context.Background()
	if err := auth.InitManager(ctx, manager); err != nil {
		log.Fatalf("auth manager init: %v", err)
	}

	// Backend CLI commands: `skein-api users-list`, `skein-api password-hash ...`
	// They run before serving-only options (signing secret, TTL) are enforced.
	if len(os.Args) > 1 {
		runCommand(ctx, manager, os.Args[1], os.Args[2:])
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	codec, err := auth.NewTokenCodecFromConfig(cfg)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	opts := []auth.ServiceOption{auth.WithTokenCodec(codec)}
	rp := httpapi.ReadyProbe{}
	var store *pg.Store
	if dsn := cfg.Get(config.KeyDatabaseDSN); dsn != "" {
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		opts = append(opts, auth.WithDagStore(store))
		rp.DB = store.DB()
	} else {
		opts = append(opts, auth.WithDagStore(&auth.MemoryDagStore{}))
	}

	svc, err := auth.NewService(manager, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(svc, rp, version)

	srv := &http.Server{
		Addr:              cfg.Get(config.KeyAPIHost),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting skein-api %s on %s (auth manager %s)",
		version, srv.Addr, cfg.Get(config.KeyAuthManager))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}

func runCommand(ctx context.Context, manager auth.Manager, name string, args []string) {
	for _, cmd := range auth.CommandsOf(manager) {
		if cmd.Name != name {
			continue
		}
		if err := cmd.Run(ctx, args); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
		return
	}
	log.Printf("unknown command %q; available commands:", name)
	for _, cmd := range auth.CommandsOf(manager) {
		log.Printf("  %s\t%s", cmd.Name, cmd.Usage)
	}
	os.Exit(2)
}
