package repository

import (
	"context"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// OperationRepository persistência do registro da operação do assistente.
type OperationRepository interface {
	Create(ctx context.Context, op *entity.Operation) error
	GetByID(ctx context.Context, id string) (*entity.Operation, error)
	// UpdateState grava o desfecho agregado da operação.
	UpdateState(ctx context.Context, id, state, message string) error
}
