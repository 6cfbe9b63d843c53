// Command sandboxd runs the multi-tenant code-execution sandbox service:
// container lifecycle, image provisioning, package installs, file
// transfer, and the MCP tool-dispatch surface, fronted by one HTTP server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sandboxd/internal/auth"
	"sandboxd/internal/config"
	"sandboxd/internal/httpapi"
	"sandboxd/internal/image"
	"sandboxd/internal/logging"
	"sandboxd/internal/mcptools"
	"sandboxd/internal/runtime"
	"sandboxd/internal/sandboxsvc"
	"sandboxd/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("SANDBOXD_CONFIG"), "path to TOML config file")
	flag.Parse()

	bootLog := log.New(os.Stdout, "sandboxd ", log.LstdFlags|log.LUTC)

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.Fatalf("config: %v", err)
	}

	appLog, err := logging.New(cfg.Logging, "sandboxd")
	if err != nil {
		bootLog.Fatalf("logging: %v", err)
	}

	db, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		appLog.Fatalf("store: %v", err)
	}
	defer db.Close()

	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		appLog.Fatalf("docker runtime: %v", err)
	}
	defer rt.Close()

	provisioner := image.New(rt, appLog)
	if err := provisioner.Ensure(context.Background(), cfg.Docker); err != nil {
		appLog.Printf("image provisioner: %v", err)
	}

	linkHost := cfg.Server.Host
	if linkHost == "0.0.0.0" || linkHost == "" {
		linkHost = "localhost"
	}
	baseURL := "http://" + linkHost + ":" + portString(cfg.Server.Port)

	svc := sandboxsvc.New(rt, db, sandboxsvc.Options{
		Image:             cfg.Docker.DefaultImage,
		UserSandboxLimit:  cfg.Auth.UserSandboxLimit,
		BaseURL:           baseURL,
		AppendAPIKeyToURL: cfg.Auth.AppendAPIKeyToURL,
		InstallIndexURL:   cfg.Install.IndexURL,
	}, appLog)

	gate := &auth.Gate{Store: db, Cfg: cfg.Auth}

	getServer := mcptools.NewServerFactory(svc, appLog)

	srv := httpapi.New(gate, db, cfg.Auth, svc, getServer, appLog)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Host + ":" + portString(cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Printf("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	appLog.Printf("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

func portString(port int) string {
	if port <= 0 {
		return "8080"
	}
	return strconv.Itoa(port)
}
