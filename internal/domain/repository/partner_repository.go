package repository

import (
	"context"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// PartnerRepository acesso de leitura aos tomadores.
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Partner, error)
}
