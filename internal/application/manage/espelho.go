package manage

import (
	"context"
	"fmt"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
	"github.com/fiscalbr/nfse-gateway/pkg/logger"
)

// EspelhoGenerator porta para a renderização do espelho da NFS-e em PDF.
type EspelhoGenerator interface {
	Generate(inv *entity.Invoice, company *entity.Company, partner *entity.Partner) ([]byte, error)
}

// EspelhoUseCase gera o espelho (representação visual, sem valor fiscal) de
// uma NFS-e já transmitida.
type EspelhoUseCase struct {
	invoices  repository.InvoiceRepository
	companies repository.CompanyRepository
	partners  repository.PartnerRepository
	generator EspelhoGenerator
	log       *logger.Logger
}

// NewEspelhoUseCase cria o caso de uso do espelho.
func NewEspelhoUseCase(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	partners repository.PartnerRepository,
	generator EspelhoGenerator,
	log *logger.Logger,
) *EspelhoUseCase {
	return &EspelhoUseCase{
		invoices:  invoices,
		companies: companies,
		partners:  partners,
		generator: generator,
		log:       log,
	}
}

// Generate devolve o PDF do espelho da nota. Só notas transmitidas têm
// espelho: as demais devolvem ErrNotYetSent.
func (uc *EspelhoUseCase) Generate(ctx context.Context, invoiceID string) ([]byte, error) {
	inv, err := uc.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.Transmitida() {
		return nil, fmt.Errorf("nota %s: %w", inv.Number, domain.ErrNotYetSent)
	}

	company, err := uc.companies.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("carregando empresa emissora: %w", err)
	}
	partner, err := uc.partners.GetByID(ctx, inv.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("carregando tomador: %w", err)
	}

	pdf, err := uc.generator.Generate(inv, company, partner)
	if err != nil {
		return nil, fmt.Errorf("gerando espelho da nota %s: %w", inv.Number, err)
	}

	uc.log.Debug().Str("invoice_id", inv.ID).Int("bytes", len(pdf)).Msg("espelho gerado")
	return pdf, nil
}
