package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementação de CompanyRepository (usável com pool ou tx).
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID carrega a empresa emissora com o cadastro de certificado e endpoint.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, name, cnpj, COALESCE(inscricao_municipal, ''), COALESCE(city_code, ''),
		       COALESCE(regime_tributacao, ''), COALESCE(cert_file, ''), COALESCE(cert_password, ''),
		       COALESCE(nfse_server_host, ''), COALESCE(nfse_server_path, ''),
		       created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c entity.Company
	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.CNPJ, &c.InscricaoMunicipal, &c.CityCode,
		&c.RegimeTributacao, &c.CertFile, &c.CertPassword,
		&c.NFSeServerHost, &c.NFSeServerPath,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("empresa %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select company: %w", err)
	}
	return &c, nil
}
