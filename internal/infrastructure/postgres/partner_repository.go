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

var _ repository.PartnerRepository = (*PartnerRepo)(nil)

// PartnerRepo implementação de PartnerRepository (usável com pool ou tx).
type PartnerRepo struct {
	q Querier
}

// NewPartnerRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewPartnerRepository(q Querier) *PartnerRepo {
	return &PartnerRepo{q: q}
}

// GetByID carrega o tomador com o endereço completo.
func (r *PartnerRepo) GetByID(ctx context.Context, id string) (*entity.Partner, error) {
	query := `
		SELECT id, razao_social, COALESCE(cnpj_cpf, ''), COALESCE(person_type, ''),
		       COALESCE(inscricao_municipal, ''), COALESCE(inscricao_estadual, ''),
		       COALESCE(logradouro, ''), COALESCE(numero, ''), COALESCE(complemento, ''),
		       COALESCE(bairro, ''), COALESCE(city_code, ''), COALESCE(uf, ''), COALESCE(cep, ''),
		       COALESCE(email, ''), created_at, updated_at
		FROM partners
		WHERE id = $1`

	var p entity.Partner
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.RazaoSocial, &p.CNPJCPF, &p.PersonType,
		&p.InscricaoMunicipal, &p.InscricaoEstadual,
		&p.Logradouro, &p.Numero, &p.Complemento,
		&p.Bairro, &p.CityCode, &p.UF, &p.CEP,
		&p.Email, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tomador %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("select partner: %w", err)
	}
	return &p, nil
}
