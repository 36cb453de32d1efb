package manage

import (
	"context"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	"github.com/fiscalbr/nfse-gateway/internal/domain/repository"
)

// Transmitter porta de saída para o canal autenticado com a prefeitura.
// A implementação concreta usa SOAP com certificado de cliente; nos testes
// injeta-se um fake.
type Transmitter interface {
	// CheckLive sonda a disponibilidade do servidor. nil = no ar; qualquer
	// resposta não-200 ou falha de transporte conta como fora do ar.
	CheckLive(ctx context.Context, host string) error
	// Submit transmite o lote assinado. mode distingue a validação
	// (TesteEnvioLoteRPS) da transmissão real; a validação nunca persiste
	// nada na prefeitura além do retorno.
	Submit(ctx context.Context, endpoint nfse.Endpoint, batch *nfse.Batch, cert *nfse.ScopedCertificate, mode nfse.Mode) (*nfse.TransmissionResult, error)
	// Cancel pede o cancelamento das NFS-e identificadas no pedido.
	Cancel(ctx context.Context, endpoint nfse.Endpoint, req *nfse.CancelRequest, cert *nfse.ScopedCertificate) (*nfse.TransmissionResult, error)
	// Query consulta a situação das NFS-e identificadas no pedido.
	Query(ctx context.Context, endpoint nfse.Endpoint, req *nfse.QueryRequest, cert *nfse.ScopedCertificate) (*nfse.TransmissionResult, error)
}

// CertificateProvisioner porta para materializar o certificado da empresa com
// escopo de uma operação.
type CertificateProvisioner interface {
	Provision(company *entity.Company) (*nfse.ScopedCertificate, error)
}

// TxRunner executa as escritas da reconciliação numa transação: as notas
// atualizadas e o estado final da operação são commitados juntos, antes de
// qualquer erro fatal ser propagado.
type TxRunner interface {
	RunNFSe(ctx context.Context, fn func(
		invoices repository.InvoiceRepository,
		operations repository.OperationRepository,
	) error) error
}
