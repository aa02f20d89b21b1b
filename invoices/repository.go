package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvoiceNotFound is returned when no XML exists for an access key.
var ErrInvoiceNotFound = errors.New("invoices: not found")

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

const pendingSQL = `
SELECT chaveacesso,
       COALESCE(nrodoc, ''),
       COALESCE(seriedoc, ''),
       COALESCE(modelo, ''),
       COALESCE(id_cliente::text, ''),
       COALESCE(nome_cliente, ''),
       COALESCE(cel_cliente, '')
FROM cv_danfe_venda_notifica
WHERE status = $1
ORDER BY chaveacesso;
`

// Pending returns the notification rows still waiting for delivery.
func (r *Repository) Pending(ctx context.Context, q Querier) ([]Invoice, error) {
	rows, err := q.Query(ctx, pendingSQL, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("invoices: query pending: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.AccessKey, &inv.Number, &inv.Series, &inv.Model,
			&inv.ClientID, &inv.ClientName, &inv.RawPhone); err != nil {
			return nil, fmt.Errorf("invoices: scan pending: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invoices: read pending: %w", err)
	}

	return invoices, nil
}

const fetchXMLSQL = `SELECT xml, xmlautorizacao FROM retxmlnfe($1);`

// FetchXML loads the signed NF-e XML for an access key and, when the
// authorization protocol comes separately, assembles the full nfeProc
// document the fiscal converter expects.
func (r *Repository) FetchXML(ctx context.Context, q Querier, accessKey string) (string, error) {
	var nfe, auth *string
	if err := q.QueryRow(ctx, fetchXMLSQL, accessKey).Scan(&nfe, &auth); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvoiceNotFound
		}
		return "", fmt.Errorf("invoices: fetch xml %s: %w", accessKey, err)
	}

	xmlNFe := strings.TrimSpace(deref(nfe))
	xmlAuth := strings.TrimSpace(deref(auth))
	if xmlNFe == "" {
		return "", fmt.Errorf("invoices: empty xml for key %s", accessKey)
	}

	if strings.Contains(xmlNFe, "<nfeProc") {
		return xmlNFe, nil
	}

	xmlNFe = stripProlog(xmlNFe)
	xmlAuth = stripProlog(xmlAuth)
	if xmlAuth == "" {
		return xmlNFe, nil
	}

	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<nfeProc versao="4.00" xmlns="http://www.portalfiscal.inf.br/nfe">` +
		xmlNFe + xmlAuth + `</nfeProc>`, nil
}

const updateStatusSQL = `
UPDATE cv_danfe_venda_notifica
   SET status = $1,
       dthrenvio = CURRENT_TIMESTAMP
 WHERE chaveacesso = $2;
`

// UpdateStatus records the delivery outcome and stamps dthrenvio.
func (r *Repository) UpdateStatus(ctx context.Context, q Querier, accessKey, status string) error {
	if _, err := q.Exec(ctx, updateStatusSQL, status, accessKey); err != nil {
		return fmt.Errorf("invoices: update status %s: %w", accessKey, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// stripProlog drops a leading <?xml ...?> declaration so the fragment
// can be embedded inside the nfeProc envelope.
func stripProlog(x string) string {
	x = strings.TrimLeft(x, " \t\r\n")
	if strings.HasPrefix(x, "<?xml") {
		if end := strings.Index(x, "?>"); end != -1 {
			x = strings.TrimLeft(x[end+2:], " \t\r\n")
		}
	}
	return x
}
