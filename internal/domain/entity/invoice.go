package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos fiscais de nota. Apenas notas de serviço entram no fluxo de NFS-e.
const (
	FiscalTypeService = "service"
	FiscalTypeProduct = "product"
)

// Rótulos de estado NFS-e da nota (enumeração fixa; antes um dicionário
// mutável de labels no wizard original).
const (
	NFSeStatusTransmitida       = "Transmitida"
	NFSeStatusFalhaTransmissao  = "Falhou ao transmitir"
	NFSeStatusCancelada         = "Cancelada"
	NFSeStatusFalhaCancelamento = "Falhou ao cancelar"
)

// Classificações de linha de imposto reconhecidas pelo montador de lote.
const (
	TaxPIS       = "pis"
	TaxCOFINS    = "cofins"
	TaxINSS      = "inss"
	TaxIR        = "ir"
	TaxCSLL      = "csll"
	TaxISS       = "iss"
	TaxISSRetido = "iss_retido"
)

// ServiceLine uma linha de serviço da nota; a descrição compõe a discriminação do RPS.
type ServiceLine struct {
	Description string
}

// TaxLine uma linha de imposto da nota, já classificada pelo domínio do código de imposto.
type TaxLine struct {
	Classification string // ver constantes Tax*
	Amount         decimal.Decimal
}

// Invoice cabeçalho da nota fiscal com os campos NFS-e.
//
// Invariante: NFSeNumero e NFSeCodigoVerificacao estão preenchidos se e
// somente se NFSeStatus == NFSeStatusTransmitida. Cancelamento e consulta
// exigem ambos.
type Invoice struct {
	ID         string
	CompanyID  string
	PartnerID  string
	Number     string // numeração interna do documento
	FiscalType string
	IssueDate  time.Time

	AmountUntaxed decimal.Decimal
	AmountTax     decimal.Decimal

	// Identificação do RPS (série/sequência do documento)
	RPSSerie  string
	RPSNumero int64

	// Código de serviço resolvido a partir da operação fiscal da nota
	ServiceCode string

	// Regime de tributação da nota; vazio usa o default da empresa
	RegimeTributacao string

	Lines    []ServiceLine
	TaxLines []TaxLine

	NFSeStatus            string
	NFSeNumero            string
	NFSeCodigoVerificacao string
	NFSeRetorno           string // texto livre da última resposta da prefeitura

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transmitida informa se a nota já teve NFS-e emitida com sucesso.
func (i *Invoice) Transmitida() bool {
	return i.NFSeStatus == NFSeStatusTransmitida
}

// TemChaveNFSe informa se a nota carrega número e código de verificação
// (pré-requisito de cancelamento e consulta).
func (i *Invoice) TemChaveNFSe() bool {
	return i.NFSeNumero != "" && i.NFSeCodigoVerificacao != ""
}
