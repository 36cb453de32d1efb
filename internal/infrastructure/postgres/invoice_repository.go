package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementação de InvoiceRepository (usável com pool ou tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, company_id, partner_id, number, fiscal_type, issue_date,
	amount_untaxed, amount_tax, rps_serie, rps_numero, service_code,
	COALESCE(regime_tributacao, ''), COALESCE(nfse_status, ''),
	COALESCE(nfse_numero, ''), COALESCE(nfse_codigo_verificacao, ''),
	COALESCE(nfse_retorno, ''), created_at, updated_at`

// GetByID carrega a nota com linhas de serviço e de imposto.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("nota %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select invoice: %w", err)
	}
	if err := r.loadDetails(ctx, []*entity.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// GetByIDs devolve as notas da seleção na ordem dos ids informados, com as
// linhas carregadas. Ids inexistentes são ignorados.
func (r *InvoiceRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT` + invoiceColumns + ` FROM invoices WHERE id = ANY($1)`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*entity.Invoice, len(ids))
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		byID[inv.ID] = inv
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	// ordem da seleção, não a do banco
	ordered := make([]*entity.Invoice, 0, len(byID))
	for _, id := range ids {
		if inv, ok := byID[id]; ok {
			ordered = append(ordered, inv)
		}
	}
	if err := r.loadDetails(ctx, ordered); err != nil {
		return nil, err
	}
	return ordered, nil
}

// UpdateNFSe persiste apenas os campos NFS-e da nota.
func (r *InvoiceRepo) UpdateNFSe(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices
		SET nfse_status             = $2,
		    nfse_numero             = $3,
		    nfse_codigo_verificacao = $4,
		    nfse_retorno            = COALESCE($5, nfse_retorno),
		    updated_at              = $6
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		inv.ID,
		nullIfEmpty(inv.NFSeStatus),
		nullIfEmpty(inv.NFSeNumero),
		nullIfEmpty(inv.NFSeCodigoVerificacao),
		nullIfEmpty(inv.NFSeRetorno),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update invoice nfse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("nota %s: %w", inv.ID, domain.ErrNotFound)
	}
	return nil
}

// loadDetails carrega as linhas de serviço e de imposto de um conjunto de notas.
func (r *InvoiceRepo) loadDetails(ctx context.Context, invoices []*entity.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Invoice, len(invoices))
	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
	}

	lineRows, err := r.q.Query(ctx,
		`SELECT invoice_id, description FROM invoice_lines WHERE invoice_id = ANY($1) ORDER BY position, id`, ids)
	if err != nil {
		return fmt.Errorf("select invoice lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var invoiceID string
		var line entity.ServiceLine
		if err := lineRows.Scan(&invoiceID, &line.Description); err != nil {
			return fmt.Errorf("scan invoice line: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Lines = append(inv.Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return fmt.Errorf("iterate invoice lines: %w", err)
	}

	taxRows, err := r.q.Query(ctx,
		`SELECT invoice_id, classification, amount FROM invoice_tax_lines WHERE invoice_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("select invoice tax lines: %w", err)
	}
	defer taxRows.Close()
	for taxRows.Next() {
		var invoiceID string
		var line entity.TaxLine
		if err := taxRows.Scan(&invoiceID, &line.Classification, &line.Amount); err != nil {
			return fmt.Errorf("scan invoice tax line: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.TaxLines = append(inv.TaxLines, line)
		}
	}
	if err := taxRows.Err(); err != nil {
		return fmt.Errorf("iterate invoice tax lines: %w", err)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.PartnerID, &inv.Number, &inv.FiscalType, &inv.IssueDate,
		&inv.AmountUntaxed, &inv.AmountTax, &inv.RPSSerie, &inv.RPSNumero, &inv.ServiceCode,
		&inv.RegimeTributacao, &inv.NFSeStatus,
		&inv.NFSeNumero, &inv.NFSeCodigoVerificacao,
		&inv.NFSeRetorno, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
