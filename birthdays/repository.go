package birthdays

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier abstracts pgxpool.Pool for testability.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const dueOnSQL = `
SELECT c.cli_codigo::text,
       COALESCE(c.cli_nome, ''),
       COALESCE(c.cli_telefone, '')
FROM clientes c
WHERE c.cli_status = 'Ativo'
  AND c.cli_datanascimento IS NOT NULL
  AND EXTRACT(MONTH FROM c.cli_datanascimento) = $1
  AND EXTRACT(DAY FROM c.cli_datanascimento) = $2
ORDER BY c.cli_nome;
`

// DueOn returns the active clients whose birthday is the given
// month/day, regardless of birth year.
func (r *Repository) DueOn(ctx context.Context, q Querier, month time.Month, day int) ([]Client, error) {
	rows, err := q.Query(ctx, dueOnSQL, int(month), day)
	if err != nil {
		return nil, fmt.Errorf("birthdays: query due clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.RawPhone); err != nil {
			return nil, fmt.Errorf("birthdays: scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("birthdays: read due clients: %w", err)
	}

	return clients, nil
}
