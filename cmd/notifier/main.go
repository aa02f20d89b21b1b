// O notificador percorre todos os fluxos de aviso da CooperVerê em
// ciclos: pedidos faturados, DANFEs, aniversariantes, festividades,
// cobranças do dia e o relatório semanal de contas a pagar.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coopflow/birthdays"
	"coopflow/collections"
	"coopflow/config"
	"coopflow/db"
	"coopflow/dispatch"
	"coopflow/gateway"
	"coopflow/holidays"
	"coopflow/invoices"
	"coopflow/orders"
	"coopflow/payables"
	"coopflow/sendstate"
)

type services struct {
	orders      *orders.Service
	invoices    *invoices.Service
	birthdays   *birthdays.Service
	holidays    *holidays.Service
	collections *collections.Service
	payables    *payables.Service
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("carregar configuração: %v", err)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("conectar ao banco: %v", err)
	}
	defer pool.Close()

	sender, err := gateway.NewClient(cfg.EvoBaseURL, cfg.EvoAPIKey, cfg.EvoInstance, cfg.EvoTimeout)
	if err != nil {
		log.Fatalf("configurar gateway: %v", err)
	}

	sendLog := collections.NewLogRepository(pool)
	alerts := dispatch.NewAlertNotifier(sender, cfg.TIPhone, cfg.DefaultAreaCode, sendLog)

	svcs := services{
		orders:    orders.NewService(pool, nil, nil, sender, alerts, cfg.DefaultAreaCode),
		birthdays: birthdays.NewService(pool, nil, sendstate.NewDayStore(cfg.StatePath("aniversarios_enviados.json")), sender, alerts, cfg.DefaultAreaCode),
		holidays:  holidays.NewService(pool, nil, sendstate.NewCategoryStore(cfg.StatePath("festividades_enviados.json")), sender, cfg.DefaultAreaCode),
		collections: collections.NewService(pool, nil, sendLog, sender, alerts,
			cfg.CollectionsGate(), cfg.DefaultAreaCode),
		payables: payables.NewService(pool, nil, sender,
			sendstate.NewLastRunStore(cfg.StatePath("ultima_execucao_semana.txt")),
			cfg.PayGate(), cfg.PayPhones(), cfg.PayRangeDays, cfg.PayOffsetDays, cfg.DefaultAreaCode),
	}

	if cfg.DanfeAPIURL != "" && cfg.DanfeAPIKey != "" {
		converter, err := invoices.NewConverter(cfg.DanfeAPIURL, cfg.DanfeAPIKey, 60*time.Second)
		if err != nil {
			log.Fatalf("configurar conversor de DANFE: %v", err)
		}
		svcs.invoices = invoices.NewService(pool, nil, converter, sender, alerts, cfg.DefaultAreaCode)
	} else {
		log.Println("conversor de DANFE não configurado, envio de NF-e desativado")
	}

	interval := cfg.Interval()
	log.Printf("notificador iniciado, ciclo a cada %s", interval)

	for {
		cycle(ctx, svcs)

		select {
		case <-ctx.Done():
			log.Println("notificador encerrado")
			return
		case <-time.After(interval):
		}
	}
}

// cycle executa cada fluxo em sequência. Uma falha em um fluxo não
// impede os demais.
func cycle(ctx context.Context, svcs services) {
	if sum, err := svcs.orders.Run(ctx); err != nil {
		log.Printf("pedidos: %v", err)
	} else if sum.Total > 0 {
		log.Printf("pedidos: %d enviados, %d inválidos, %d falhas", sum.Sent, sum.InvalidRecipient, sum.Failed)
	}

	if svcs.invoices != nil {
		if sum, err := svcs.invoices.Run(ctx); err != nil {
			log.Printf("nfe: %v", err)
		} else if sum.Total > 0 {
			log.Printf("nfe: %d enviadas, %d inválidas, %d falhas", sum.Sent, sum.InvalidRecipient, sum.Failed)
		}
	}

	if sum, err := svcs.birthdays.Run(ctx); err != nil {
		log.Printf("aniversários: %v", err)
	} else if sum.Sent > 0 {
		log.Printf("aniversários: %d parabenizados", sum.Sent)
	}

	for _, season := range []holidays.Season{holidays.SeasonChristmas, holidays.SeasonNewYear} {
		sum, skipped, err := svcs.holidays.Run(ctx, season)
		switch {
		case err != nil:
			log.Printf("festividades (%s): %v", season, err)
		case !skipped && sum.Sent > 0:
			log.Printf("festividades (%s): %d enviadas", season, sum.Sent)
		}
	}

	if res, err := svcs.collections.Run(ctx); err != nil {
		log.Printf("cobranças: %v", err)
	} else if !res.Skipped && res.Clients > 0 {
		log.Printf("cobranças: %d duplicatas em %d mensagens", res.Items, res.Clients)
	}

	if res, skipped, err := svcs.payables.Run(ctx); err != nil {
		log.Printf("contas a pagar: %v", err)
	} else if !skipped {
		log.Printf("contas a pagar: relatório %s a %s enviado para %d destino(s)",
			res.From.Format("02/01/2006"), res.To.Format("02/01/2006"), res.Sent)
	}
}
