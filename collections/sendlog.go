package collections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"coopflow/sendstate"
)

// LogRepository persists delivery outcomes in the log_envio_whatsapp
// table, one row per duplicata per attempt. An OK row is the terminal
// "already sent" marker; ERRO rows are audit only and never gate a
// retry. It satisfies both the dispatch store and error-recorder
// contracts.
type LogRepository struct {
	q Querier
}

func NewLogRepository(q Querier) *LogRepository {
	return &LogRepository{q: q}
}

const hasSentSQL = `
SELECT 1
FROM log_envio_whatsapp
WHERE id_cobranca = $1
  AND categoria = $2
  AND status_envio = 'OK'
LIMIT 1;
`

func (r *LogRepository) HasSent(ctx context.Context, documentID, category, _ string) (bool, error) {
	var one int
	if err := r.q.QueryRow(ctx, hasSentSQL, documentID, category).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("collections: lookup send log: %w", err)
	}
	return true, nil
}

const insertLogSQL = `
INSERT INTO log_envio_whatsapp (id_cobranca, categoria, status_envio, mensagem_erro, data_envio)
VALUES ($1, $2, $3, $4, $5);
`

func (r *LogRepository) MarkSent(ctx context.Context, documentID, category, _ string, at time.Time) error {
	if _, err := r.q.Exec(ctx, insertLogSQL, documentID, category, string(sendstate.StatusOK), nil, at); err != nil {
		return fmt.Errorf("collections: insert send log: %w", err)
	}
	return nil
}

func (r *LogRepository) RecordError(ctx context.Context, documentID, category, _, detail string) error {
	if _, err := r.q.Exec(ctx, insertLogSQL, documentID, category, string(sendstate.StatusError), detail, time.Now()); err != nil {
		return fmt.Errorf("collections: insert error log: %w", err)
	}
	return nil
}
