package holidays

import (
	"context"
	"fmt"

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

const activeContactsSQL = `
SELECT c.cli_codigo::text,
       COALESCE(c.cli_nome, ''),
       c.cli_telefone
FROM clientes c
WHERE c.cli_status = 'Ativo'
  AND c.cli_telefone IS NOT NULL
  AND c.cli_telefone <> ''
ORDER BY c.cli_codigo;
`

// ActiveContacts returns every active client with a phone on file.
func (r *Repository) ActiveContacts(ctx context.Context, q Querier) ([]Contact, error) {
	rows, err := q.Query(ctx, activeContactsSQL)
	if err != nil {
		return nil, fmt.Errorf("holidays: query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.RawPhone); err != nil {
			return nil, fmt.Errorf("holidays: scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("holidays: read contacts: %w", err)
	}

	return contacts, nil
}
