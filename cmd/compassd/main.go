package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compass-ng/internal/config"
	"compass-ng/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./compassd.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		log.Fatalf("pipeline init failed: %v", err)
	}
	defer p.close()

	log.Printf("compassd starting")
	log.Printf("source=%s fusion=%s interval=%s", cfg.Source.Kind, cfg.Engine.Fusion, cfg.Engine.UpdateInterval)

	var srv *http.Server
	if cfg.Web.Enable {
		srv = &http.Server{
			Addr:    cfg.Web.Listen,
			Handler: web.Handler(p.status, p.broadcaster, p.tracker),
		}
		go func() {
			log.Printf("web listening on %s", cfg.Web.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
	}

	go func() {
		err := p.runSource(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("sample source stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Printf("compassd stopping")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
