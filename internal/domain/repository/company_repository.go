package repository

import (
	"context"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// CompanyRepository acesso de leitura às empresas emissoras.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}
