package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
)

var _ repository.OperationRepository = (*OperationRepo)(nil)

// OperationRepo implementação de OperationRepository (usável com pool ou tx).
type OperationRepo struct {
	q Querier
}

// NewOperationRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewOperationRepository(q Querier) *OperationRepo {
	return &OperationRepo{q: q}
}

// Create persiste o registro da operação no estado inicial.
func (r *OperationRepo) Create(ctx context.Context, op *entity.Operation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	op.CreatedAt = now
	op.UpdatedAt = now

	query := `
		INSERT INTO nfse_operations (id, company_id, kind, state, message, invoice_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		op.ID, nullIfEmpty(op.CompanyID), op.Kind, op.State, nullIfEmpty(op.Message),
		op.InvoiceIDs, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("operação %s já existe: %w", op.ID, err)
		}
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// GetByID carrega o registro da operação.
func (r *OperationRepo) GetByID(ctx context.Context, id string) (*entity.Operation, error) {
	query := `
		SELECT id, COALESCE(company_id, ''), kind, state, COALESCE(message, ''), invoice_ids, created_at, updated_at
		FROM nfse_operations
		WHERE id = $1`

	var op entity.Operation
	err := r.q.QueryRow(ctx, query, id).Scan(
		&op.ID, &op.CompanyID, &op.Kind, &op.State, &op.Message, &op.InvoiceIDs,
		&op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("operação %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select operation: %w", err)
	}
	return &op, nil
}

// UpdateState grava o desfecho agregado da operação.
func (r *OperationRepo) UpdateState(ctx context.Context, id, state, message string) error {
	query := `
		UPDATE nfse_operations
		SET state = $2, message = $3, updated_at = $4
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, state, nullIfEmpty(message), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update operation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operação %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
