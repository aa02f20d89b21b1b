package payables

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

const dueBetweenSQL = `
SELECT DISTINCT
       dp.fornecedor::text,
       COALESCE(f.nome, ''),
       dp.duppag,
       dp.dtemissao,
       dp.dtvencto,
       COALESCE(dp.saldo, 0)
FROM pduppaga dp
LEFT JOIN ppessfor f
  ON f.empresa = dp.estabfornecedor
 AND f.fornecedor = dp.fornecedor
WHERE dp.empresa = 1
  AND dp.dtvencto BETWEEN $1 AND $2
  AND (dp.quitada = 'N' OR dp.quitada IS NULL)
ORDER BY dp.dtvencto, f.nome;
`

// DueBetween returns the open payables with due date inside [from, to].
func (r *Repository) DueBetween(ctx context.Context, q Querier, from, to time.Time) ([]Payable, error) {
	rows, err := q.Query(ctx, dueBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("payables: query due: %w", err)
	}
	defer rows.Close()

	var items []Payable
	for rows.Next() {
		var (
			p      Payable
			issued *time.Time
		)
		if err := rows.Scan(&p.SupplierID, &p.SupplierName, &p.DocumentID,
			&issued, &p.DueDate, &p.Balance); err != nil {
			return nil, fmt.Errorf("payables: scan due: %w", err)
		}
		if issued != nil {
			p.IssuedAt = *issued
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payables: read due: %w", err)
	}

	return items, nil
}
