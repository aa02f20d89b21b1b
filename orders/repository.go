package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOrderNotFound is returned when the order query yields no rows for a
// pending notification.
var ErrOrderNotFound = errors.New("orders: not found")

// Querier abstracts pgxpool.Pool for testability.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

const pendingRefsSQL = `
SELECT estab, serie, numero
FROM cv_pedcab_notifica
WHERE status = $1
  AND serie = 'PV'
ORDER BY data_criacao;
`

// PendingRefs returns the sales orders still waiting for notification,
// oldest first.
func (r *Repository) PendingRefs(ctx context.Context, q Querier) ([]Ref, error) {
	rows, err := q.Query(ctx, pendingRefsSQL, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("orders: query pending refs: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.Estab, &ref.Series, &ref.Number); err != nil {
			return nil, fmt.Errorf("orders: scan ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: read pending refs: %w", err)
	}

	return refs, nil
}

const loadOrderSQL = `
SELECT pc.estab,
       pc.status,
       pc.serie || '-' || pc.numero,
       pc.dtemissao,
       pc.dtvalidade,
       pc.dtprevisao,
       CASE pc.situacao
            WHEN 0 THEN 'A Pagar'
            WHEN 1 THEN 'Pago'
            WHEN 2 THEN 'Parcialmente Pago'
            ELSE 'Todos'
       END,
       COALESCE(cm.nome, ''),
       COALESCE(cm.celular, ''),
       COALESCE(cm.endereco, '') || ', ' || COALESCE(cid.nome, '') || '-' || COALESCE(cid.uf, ''),
       COALESCE(pc.valormercadoria, 0),
       pi.seqpedite,
       COALESCE(it.descricao, ''),
       COALESCE(mr.descricao, ''),
       pi.quantidade - COALESCE(pi.cancelado, 0),
       COALESCE(it.unidade, ''),
       COALESCE(pi.valorunitario, 0),
       COALESCE(pi.valor, 0)
FROM pedcab pc
JOIN peditem pi
  ON pi.estab = pc.estab AND pi.serie = pc.serie AND pi.numero = pc.numero
LEFT JOIN itemagro it ON it.item = pi.item
LEFT JOIN itemmarca mr ON mr.marca = it.marca
LEFT JOIN contamov cm ON cm.numerocm = pc.pessoa
LEFT JOIN cidade cid ON cid.cidade = cm.cidade
WHERE pc.serie = $1
  AND pc.numero = $2
  AND pc.estab = $3
  AND pc.status <> 'C'
ORDER BY pi.seqpedite;
`

// LoadOrder loads the order header plus every line for a pending ref.
func (r *Repository) LoadOrder(ctx context.Context, q Querier, ref Ref) (Order, error) {
	rows, err := q.Query(ctx, loadOrderSQL, ref.Series, ref.Number, ref.Estab)
	if err != nil {
		return Order{}, fmt.Errorf("orders: query order %s: %w", ref.Key(), err)
	}
	defer rows.Close()

	var (
		order Order
		found bool
	)
	for rows.Next() {
		var (
			h    Header
			item Item

			issued, valid, expected *time.Time
		)
		if err := rows.Scan(&h.Estab, &h.Status, &h.Number,
			&issued, &valid, &expected, &h.Situation,
			&h.ClientName, &h.RawPhone, &h.Address, &h.Total,
			&item.Seq, &item.Description, &item.Brand,
			&item.Quantity, &item.Unit, &item.UnitPrice, &item.Total); err != nil {
			return Order{}, fmt.Errorf("orders: scan order %s: %w", ref.Key(), err)
		}
		if !found {
			if issued != nil {
				h.IssuedAt = *issued
			}
			if valid != nil {
				h.ValidUntil = *valid
			}
			if expected != nil {
				h.ExpectedAt = *expected
			}
			order.Header = h
			found = true
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("orders: read order %s: %w", ref.Key(), err)
	}
	if !found {
		return Order{}, ErrOrderNotFound
	}

	return order, nil
}

const updateStatusSQL = `
UPDATE cv_pedcab_notifica
   SET status = $1
 WHERE estab = $2 AND serie = $3 AND numero = $4;
`

// UpdateStatus records the notification outcome on the pending row.
func (r *Repository) UpdateStatus(ctx context.Context, q Querier, ref Ref, status string) error {
	if _, err := q.Exec(ctx, updateStatusSQL, status, ref.Estab, ref.Series, ref.Number); err != nil {
		return fmt.Errorf("orders: update status %s: %w", ref.Key(), err)
	}
	return nil
}
