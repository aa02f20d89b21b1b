package collections

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier abstracts pgxpool.Pool for testability.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// The NOT EXISTS clause against the send log keeps already-notified
// duplicatas out of the candidate set; rows with only ERRO records keep
// coming back.
const pendingSQL = `
SELECT fm.mfi_codigo,
       COALESCE(c.cli_codigo::text, fm.mfi_cliente::text),
       COALESCE(c.cli_nome, ''),
       COALESCE(c.cli_telefone, ''),
       fm.mfi_data_vencimento,
       COALESCE(fm.mfi_valor, 0)
FROM financeiro_mov fm
LEFT JOIN clientes c ON c.cli_codigo = fm.mfi_cliente
WHERE fm.mfi_data_recebimento IS NULL
  AND fm.mfi_data_vencimento BETWEEN $1 AND $2
  AND fm.mfi_operacao = 'E'
  AND fm.mfi_status = 'P'
  AND (fm.mfi_proc IS NULL OR fm.mfi_proc NOT IN ('E', 'C'))
  AND NOT EXISTS (
        SELECT 1
        FROM log_envio_whatsapp l
        WHERE l.id_cobranca = fm.mfi_codigo
          AND l.categoria = $3
          AND l.status_envio = 'OK'
  )
ORDER BY fm.mfi_data_vencimento, fm.mfi_codigo;
`

// PendingByCategory returns the open duplicatas inside the category's
// due-date range that were not yet successfully notified.
func (r *Repository) PendingByCategory(ctx context.Context, q Querier, cat Category) ([]Receivable, error) {
	rows, err := q.Query(ctx, pendingSQL, cat.From, cat.To, cat.Name)
	if err != nil {
		return nil, fmt.Errorf("collections: query %s: %w", cat.Name, err)
	}
	defer rows.Close()

	var items []Receivable
	for rows.Next() {
		var it Receivable
		if err := rows.Scan(&it.DocumentID, &it.ClientID, &it.ClientName,
			&it.RawPhone, &it.DueDate, &it.Amount); err != nil {
			return nil, fmt.Errorf("collections: scan %s: %w", cat.Name, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collections: read %s: %w", cat.Name, err)
	}

	return items, nil
}
