package manage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
	"github.com/fiscalbr/nfse-gateway/pkg/logger"
)

// Config parâmetros de protocolo que não dependem da empresa.
type Config struct {
	ReferenceCity string // código IBGE do município de referência
	VersaoSchema  string // versão do layout gravada no cabeçalho do lote
}

// Result desfecho de uma operação, devolvido ao chamador junto com o erro
// fatal (quando houver). Advisories são avisos não fatais da prefeitura;
// Report só vem preenchido em rejeição de protocolo.
type Result struct {
	OperationID string
	State       string // entity.OperationState*
	Advisories  []string
	Report      map[string][]nfse.Alert
}

// UseCase orquestra as quatro operações do assistente de NFS-e: transmissão,
// validação, cancelamento e consulta. Cada execução cria um registro de
// operação, seleciona as notas elegíveis, materializa o certificado da
// empresa, sonda a prefeitura, transmite e reconcilia a resposta dentro de
// uma transação.
type UseCase struct {
	invoices    repository.InvoiceRepository
	companies   repository.CompanyRepository
	partners    repository.PartnerRepository
	operations  repository.OperationRepository
	tx          TxRunner
	certs       CertificateProvisioner
	transmitter Transmitter
	cfg         Config
	log         *logger.Logger
}

// NewUseCase cria o caso de uso com as dependências injetadas.
func NewUseCase(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	partners repository.PartnerRepository,
	operations repository.OperationRepository,
	tx TxRunner,
	certs CertificateProvisioner,
	transmitter Transmitter,
	cfg Config,
	log *logger.Logger,
) *UseCase {
	return &UseCase{
		invoices:    invoices,
		companies:   companies,
		partners:    partners,
		operations:  operations,
		tx:          tx,
		certs:       certs,
		transmitter: transmitter,
		cfg:         cfg,
		log:         log,
	}
}

// Send transmite as notas selecionadas como um lote de RPS.
func (uc *UseCase) Send(ctx context.Context, invoiceIDs []string) (*Result, error) {
	return uc.run(ctx, entity.OperationSend, invoiceIDs)
}

// TestSend valida o lote na prefeitura sem emitir NFS-e.
func (uc *UseCase) TestSend(ctx context.Context, invoiceIDs []string) (*Result, error) {
	return uc.run(ctx, entity.OperationTestSend, invoiceIDs)
}

// Cancel pede o cancelamento das NFS-e já emitidas para as notas selecionadas.
func (uc *UseCase) Cancel(ctx context.Context, invoiceIDs []string) (*Result, error) {
	return uc.run(ctx, entity.OperationCancel, invoiceIDs)
}

// Check consulta na prefeitura a situação das NFS-e das notas selecionadas.
func (uc *UseCase) Check(ctx context.Context, invoiceIDs []string) (*Result, error) {
	return uc.run(ctx, entity.OperationCheck, invoiceIDs)
}

func (uc *UseCase) run(ctx context.Context, kind string, invoiceIDs []string) (*Result, error) {
	selection, err := uc.invoices.GetByIDs(ctx, invoiceIDs)
	if err != nil {
		return nil, fmt.Errorf("carregando seleção de notas: %w", err)
	}

	op := &entity.Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		State:      entity.OperationStateInit,
		InvoiceIDs: invoiceIDs,
	}
	if len(selection) > 0 {
		op.CompanyID = selection[0].CompanyID
	}
	if err := uc.operations.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("criando registro da operação: %w", err)
	}

	log := uc.log.With().Str("operation_id", op.ID).Str("kind", kind).Logger()

	eligible, err := uc.selectFor(kind, selection)
	if err != nil {
		uc.finish(ctx, op.ID, entity.OperationStateFailed, err.Error())
		return &Result{OperationID: op.ID, State: entity.OperationStateFailed}, err
	}
	if len(eligible) == 0 {
		// seleção filtrou para vazio sem erro: nada a fazer, nenhuma rede
		uc.finish(ctx, op.ID, entity.OperationStateNothing, "nenhuma nota elegível na seleção")
		return &Result{OperationID: op.ID, State: entity.OperationStateNothing}, nil
	}

	company, err := uc.companies.GetByID(ctx, eligible[0].CompanyID)
	if err != nil {
		uc.finish(ctx, op.ID, entity.OperationStateFailed, err.Error())
		return &Result{OperationID: op.ID, State: entity.OperationStateFailed}, fmt.Errorf("carregando empresa emissora: %w", err)
	}

	cert, err := uc.certs.Provision(company)
	if err != nil {
		uc.finish(ctx, op.ID, entity.OperationStateFailed, err.Error())
		return &Result{OperationID: op.ID, State: entity.OperationStateFailed}, err
	}
	defer cert.Release()

	// Sondagem antes de qualquer montagem: prefeitura fora do ar aborta na
	// hora com o desfecho dedicado down.
	if err := uc.transmitter.CheckLive(ctx, company.NFSeServerHost); err != nil {
		log.Warn().Err(err).Str("host", company.NFSeServerHost).Msg("prefeitura fora do ar")
		uc.finish(ctx, op.ID, entity.OperationStateDown, err.Error())
		return &Result{OperationID: op.ID, State: entity.OperationStateDown},
			fmt.Errorf("%w: %v", domain.ErrEndpointUnavailable, err)
	}

	endpoint := nfse.Endpoint{Host: company.NFSeServerHost, Path: company.NFSeServerPath}
	byKey := invoicesByKey(eligible)

	res, mode, err := uc.transmit(ctx, kind, endpoint, company, eligible, cert)
	if err != nil {
		uc.finish(ctx, op.ID, entity.OperationStateFailed, err.Error())
		return &Result{OperationID: op.ID, State: entity.OperationStateFailed}, err
	}

	rec := Reconcile(kind, mode, res, byKey)

	msg := ""
	if rec.Rejection != nil {
		msg = rec.Rejection.Error()
	}
	if rec.Divergence != nil {
		msg = rec.Divergence.Error()
	}

	// Updates e desfecho da operação commitam juntos, antes de qualquer erro
	// fatal ser propagado: em divergência de alíquota os sucessos parciais
	// precisam estar no banco quando o chamador receber o erro.
	err = uc.tx.RunNFSe(ctx, func(invoices repository.InvoiceRepository, operations repository.OperationRepository) error {
		for _, u := range rec.Updates {
			u.Invoice.NFSeStatus = u.Status
			u.Invoice.NFSeNumero = u.Numero
			u.Invoice.NFSeCodigoVerificacao = u.CodigoVerificacao
			if u.Retorno != "" {
				u.Invoice.NFSeRetorno = u.Retorno
			}
			if err := invoices.UpdateNFSe(ctx, u.Invoice); err != nil {
				return fmt.Errorf("nota %s: %w", u.Invoice.Number, err)
			}
		}
		return operations.UpdateState(ctx, op.ID, rec.State, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("persistindo reconciliação: %w", err)
	}

	log.Info().
		Str("state", rec.State).
		Int("updates", len(rec.Updates)).
		Int("advisories", len(rec.Advisories)).
		Msg("operação reconciliada")

	result := &Result{OperationID: op.ID, State: rec.State, Advisories: rec.Advisories}
	if rec.Rejection != nil {
		result.Report = rec.Rejection.Report
		return result, rec.Rejection
	}
	if rec.Divergence != nil {
		return result, rec.Divergence
	}
	return result, nil
}

func (uc *UseCase) selectFor(kind string, selection []*entity.Invoice) ([]*entity.Invoice, error) {
	switch kind {
	case entity.OperationSend, entity.OperationTestSend:
		return SelectForSend(selection)
	case entity.OperationCancel:
		return SelectForCancel(selection)
	default:
		return SelectForCheck(selection)
	}
}

// transmit monta o pedido do tipo da operação e o envia. O erro devolvido já é
// um *domain.CommunicationError quando a falha for de transporte.
func (uc *UseCase) transmit(
	ctx context.Context,
	kind string,
	endpoint nfse.Endpoint,
	company *entity.Company,
	eligible []*entity.Invoice,
	cert *nfse.ScopedCertificate,
) (*nfse.TransmissionResult, nfse.Mode, error) {
	switch kind {
	case entity.OperationSend, entity.OperationTestSend:
		inputs, err := uc.resolveInputs(ctx, company, eligible)
		if err != nil {
			return nil, nfse.ModeSubmit, err
		}
		batch, err := nfse.BuildBatch(inputs, uc.cfg.ReferenceCity, uc.cfg.VersaoSchema)
		if err != nil {
			return nil, nfse.ModeSubmit, err
		}
		mode := nfse.ModeSubmit
		if kind == entity.OperationTestSend {
			mode = nfse.ModeValidate
		}
		res, err := uc.transmitter.Submit(ctx, endpoint, batch, cert, mode)
		return res, mode, err
	case entity.OperationCancel:
		req := &nfse.CancelRequest{
			CNPJRemetente:      nfse.OnlyDigits(company.CNPJ),
			InscricaoMunicipal: nfse.OnlyDigits(company.InscricaoMunicipal),
			Items:              cancelItems(eligible),
		}
		res, err := uc.transmitter.Cancel(ctx, endpoint, req, cert)
		return res, nfse.ModeSubmit, err
	default:
		req := &nfse.QueryRequest{
			CNPJRemetente:      nfse.OnlyDigits(company.CNPJ),
			InscricaoMunicipal: nfse.OnlyDigits(company.InscricaoMunicipal),
			Items:              cancelItems(eligible),
		}
		res, err := uc.transmitter.Query(ctx, endpoint, req, cert)
		return res, nfse.ModeSubmit, err
	}
}

func (uc *UseCase) resolveInputs(ctx context.Context, company *entity.Company, eligible []*entity.Invoice) ([]nfse.BuildInput, error) {
	inputs := make([]nfse.BuildInput, 0, len(eligible))
	for _, inv := range eligible {
		partner, err := uc.partners.GetByID(ctx, inv.PartnerID)
		if err != nil {
			return nil, fmt.Errorf("carregando tomador da nota %s: %w", inv.Number, err)
		}
		inputs = append(inputs, nfse.BuildInput{Invoice: inv, Company: company, Partner: partner})
	}
	return inputs, nil
}

// finish grava o desfecho da operação fora de transação (caminhos que abortam
// antes de qualquer escrita em nota).
func (uc *UseCase) finish(ctx context.Context, opID, state, message string) {
	if err := uc.operations.UpdateState(ctx, opID, state, message); err != nil {
		uc.log.Error().Err(err).Str("operation_id", opID).Msg("falha ao gravar desfecho da operação")
	}
}

func invoicesByKey(invoices []*entity.Invoice) map[nfse.RPSKey]*entity.Invoice {
	byKey := make(map[nfse.RPSKey]*entity.Invoice, len(invoices))
	for _, inv := range invoices {
		byKey[nfse.RPSKey{Serie: inv.RPSSerie, Numero: inv.RPSNumero}] = inv
	}
	return byKey
}

func cancelItems(invoices []*entity.Invoice) []nfse.CancelItem {
	items := make([]nfse.CancelItem, 0, len(invoices))
	for _, inv := range invoices {
		items = append(items, nfse.CancelItem{
			Key:               nfse.RPSKey{Serie: inv.RPSSerie, Numero: inv.RPSNumero},
			NumeroNFSe:        inv.NFSeNumero,
			CodigoVerificacao: inv.NFSeCodigoVerificacao,
			InvoiceID:         inv.ID,
		})
	}
	return items
}
