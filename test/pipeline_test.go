package test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"coopflow/birthdays"
	"coopflow/collections"
	"coopflow/gateway"
	"coopflow/payables"
	"coopflow/schedule"
	"coopflow/sendstate"
	"coopflow/test/infra"
)

type sentText struct {
	number string
	text   string
}

type fakeSender struct {
	texts []sentText
}

func (f *fakeSender) SendText(_ context.Context, number, text string) (map[string]any, error) {
	f.texts = append(f.texts, sentText{number, text})
	return map[string]any{"status": "PENDING"}, nil
}

func (f *fakeSender) SendMedia(_ context.Context, p gateway.MediaParams) (map[string]any, error) {
	f.texts = append(f.texts, sentText{p.Number, p.Caption})
	return map[string]any{"status": "PENDING"}, nil
}

// Quarta-feira dentro do horário comercial e do gate semanal.
var testNow = time.Date(2026, time.September, 2, 10, 0, 0, 0, time.Local)

func TestNotificationPipelineAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("pulando teste de integração em modo -short")
	}

	ctx := context.Background()

	pgC, dsn, err := infra.StartPostgres16(ctx, "")
	if err != nil {
		t.Skipf("postgres indisponível: %v", err)
	}
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("aplicar migrações: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = teardown(context.Background())
	})

	seeds := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO clientes (cli_codigo, cli_nome, cli_telefone, cli_status, cli_datanascimento)
		  VALUES ($1, $2, $3, 'Ativo', $4)`,
			[]any{1, "maria da silva", "46 9 9911-0001", time.Date(1980, time.September, 2, 0, 0, 0, 0, time.UTC)}},
		{`INSERT INTO financeiro_mov (mfi_codigo, mfi_cliente, mfi_operacao, mfi_status, mfi_valor, mfi_data_vencimento)
		  VALUES ($1, 1, 'E', 'P', $2, $3)`,
			[]any{"DUP-100", 350.00, testNow}},
		{`INSERT INTO financeiro_mov (mfi_codigo, mfi_cliente, mfi_operacao, mfi_status, mfi_valor, mfi_data_vencimento)
		  VALUES ($1, 1, 'E', 'P', $2, $3)`,
			[]any{"DUP-101", 120.50, testNow}},
		{`INSERT INTO ppessfor (empresa, fornecedor, nome) VALUES (1, 7, 'AgroForte Insumos')`, nil},
		{`INSERT INTO pduppaga (empresa, estabfornecedor, fornecedor, duppag, dtemissao, dtvencto, saldo, quitada)
		  VALUES (1, 1, 7, 'NF-555', $1, $2, 1500.00, 'N')`,
			[]any{testNow.AddDate(0, 0, -10), testNow.AddDate(0, 0, 3)}},
	}
	for _, s := range seeds {
		if _, err := pool.Exec(ctx, s.sql, s.args...); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	clock := func() time.Time { return testNow }

	t.Run("cobranças agrupadas e idempotentes", func(t *testing.T) {
		sender := &fakeSender{}
		svc := collections.NewService(pool, nil, collections.NewLogRepository(pool), sender, nil,
			schedule.BusinessHoursGate{}, "46").WithClock(clock)

		res, err := svc.Run(ctx)
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
		if res.Items != 2 || res.Clients != 1 {
			t.Fatalf("Items = %d, Clients = %d, quer 2 e 1", res.Items, res.Clients)
		}
		if len(sender.texts) != 1 {
			t.Fatalf("mensagens = %d, quer 1", len(sender.texts))
		}
		msg := sender.texts[0]
		if msg.number != "5546999110001" {
			t.Errorf("número = %q", msg.number)
		}
		for _, want := range []string{"DUP-100", "DUP-101", "R$ 350,00", "R$ 120,50"} {
			if !strings.Contains(msg.text, want) {
				t.Errorf("mensagem sem %q:\n%s", want, msg.text)
			}
		}

		res, err = svc.Run(ctx)
		if err != nil {
			t.Fatalf("segundo Run() = %v", err)
		}
		if res.Items != 0 {
			t.Errorf("segundo ciclo: Items = %d, quer 0", res.Items)
		}
		if len(sender.texts) != 1 {
			t.Errorf("segundo ciclo reenviou: mensagens = %d", len(sender.texts))
		}
	})

	t.Run("aniversários uma vez por dia", func(t *testing.T) {
		sender := &fakeSender{}
		store := sendstate.NewDayStore(filepath.Join(t.TempDir(), "aniversarios.json"))
		svc := birthdays.NewService(pool, nil, store, sender, nil, "46").WithClock(clock)

		sum, err := svc.Run(ctx)
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
		if sum.Sent != 1 {
			t.Fatalf("Sent = %d, quer 1", sum.Sent)
		}
		if !strings.Contains(sender.texts[0].text, "Maria") {
			t.Errorf("saudação sem primeiro nome: %q", sender.texts[0].text)
		}

		sum, err = svc.Run(ctx)
		if err != nil {
			t.Fatalf("segundo Run() = %v", err)
		}
		if sum.AlreadySent != 1 || len(sender.texts) != 1 {
			t.Errorf("segundo ciclo: AlreadySent = %d, mensagens = %d", sum.AlreadySent, len(sender.texts))
		}
	})

	t.Run("relatório semanal de contas a pagar", func(t *testing.T) {
		sender := &fakeSender{}
		lastRun := sendstate.NewLastRunStore(filepath.Join(t.TempDir(), "ultima.txt"))
		svc := payables.NewService(pool, nil, sender, lastRun,
			schedule.WeeklyGate{Weekday: time.Wednesday, Hour: 8}, []string{"46999110009"},
			7, 0, "46").WithClock(clock)

		res, skipped, err := svc.Run(ctx)
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
		if skipped {
			t.Fatal("relatório pulado dentro da janela")
		}
		if res.Sent != 1 || len(sender.texts) != 1 {
			t.Fatalf("Sent = %d, mensagens = %d", res.Sent, len(sender.texts))
		}
		for _, want := range []string{"AgroForte Insumos", "R$ 1.500,00"} {
			if !strings.Contains(sender.texts[0].text, want) {
				t.Errorf("relatório sem %q:\n%s", want, sender.texts[0].text)
			}
		}

		if _, skipped, err = svc.Run(ctx); err != nil || !skipped {
			t.Errorf("segunda execução no mesmo dia: skipped = %v, err = %v", skipped, err)
		}
	})
}
