// O listener de webhook recebe os eventos da instância Evolution e os
// normaliza para consumo interno.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"coopflow/config"
	"coopflow/webhook"
)

func main() {
	cfg, err := config.LoadWebhook()
	if err != nil {
		log.Fatalf("carregar configuração: %v", err)
	}

	srv := &http.Server{
		Addr:    cfg.WebhookAddr,
		Handler: webhook.NewServer(cfg.WebhookAPIKey, nil).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("webhook escutando em %s", cfg.WebhookAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("webhook: %v", err)
	}
	log.Println("webhook encerrado")
}
