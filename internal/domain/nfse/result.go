package nfse

import (
	"fmt"
	"sort"
	"strings"
)

// Mode distingue a transmissão de validação (não persiste nada na prefeitura)
// da transmissão real. Ambas usam o mesmo formato de lote.
type Mode int

const (
	// ModeValidate lote enviado apenas para validação (TesteEnvioLoteRPS)
	ModeValidate Mode = iota
	// ModeSubmit transmissão real (EnvioLoteRPS)
	ModeSubmit
)

// Códigos de alerta/erro da prefeitura com tratamento especial.
const (
	// CodeAliquotaDivergente alerta fatal: a prefeitura detectou alíquota
	// diferente da cadastrada. Os itens já reconciliados são persistidos e a
	// operação aborta com instrução de cancelar e corrigir.
	CodeAliquotaDivergente = "208"
	// CodeNFSeCancelada a consulta reportou a NFS-e como cancelada na prefeitura
	CodeNFSeCancelada = "219"
	// CodeNFSeExtraviada a consulta não localizou a NFS-e
	CodeNFSeExtraviada = "220"
)

// Alert um par (código, mensagem) de alerta ou erro da prefeitura.
type Alert struct {
	Code    string
	Message string
}

// Issued chave de NFS-e emitida: liga o RPS de origem ao número e código de
// verificação atribuídos pela prefeitura.
type Issued struct {
	Key               RPSKey
	Numero            string
	CodigoVerificacao string
}

// TransmissionResult resultado decodificado de uma chamada à prefeitura.
// Sucesso de lote e sucessos por item são independentes: um retorno de sucesso
// pode vir acompanhado de alertas, e um retorno rejeitado traz erros por item.
type TransmissionResult struct {
	Success  bool
	Issued   []Issued
	Warnings map[RPSKey][]Alert
	Errors   map[RPSKey][]Alert
}

// SortedWarningKeys devolve as chaves de alerta em ordem estável (série, número),
// para que a reconciliação seja determinística.
func (r *TransmissionResult) SortedWarningKeys() []RPSKey {
	return sortedKeys(r.Warnings)
}

// SortedErrorKeys idem para os erros.
func (r *TransmissionResult) SortedErrorKeys() []RPSKey {
	return sortedKeys(r.Errors)
}

func sortedKeys(m map[RPSKey][]Alert) []RPSKey {
	keys := make([]RPSKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Serie != keys[j].Serie {
			return keys[i].Serie < keys[j].Serie
		}
		return keys[i].Numero < keys[j].Numero
	})
	return keys
}

// CancelItem identificação de uma NFS-e a cancelar ou consultar.
type CancelItem struct {
	Key               RPSKey
	NumeroNFSe        string
	CodigoVerificacao string
	InvoiceID         string
}

// CancelRequest pedido de cancelamento de um conjunto de NFS-e emitidas.
type CancelRequest struct {
	CNPJRemetente      string
	InscricaoMunicipal string
	Items              []CancelItem
}

// QueryRequest pedido de consulta de situação de NFS-e emitidas.
// Mesma identificação por item do cancelamento.
type QueryRequest struct {
	CNPJRemetente      string
	InscricaoMunicipal string
	Items              []CancelItem
}

// RejectionError rejeição de protocolo: a prefeitura devolveu alertas/erros
// estruturados. Fatal para o restante do lote; sucessos já reconciliados são
// preservados. Report é indexado pelo número da nota de origem.
type RejectionError struct {
	Report map[string][]Alert
}

func (e *RejectionError) Error() string {
	labels := make([]string, 0, len(e.Report))
	for number := range e.Report {
		labels = append(labels, number)
	}
	sort.Strings(labels)
	return fmt.Sprintf("lote rejeitado pela prefeitura (notas: %s)", strings.Join(labels, ", "))
}

// AliquotaDivergenceError erro fatal disparado pelo alerta 208: os resultados
// parciais já foram persistidos; a nota apontada precisa ser cancelada e
// corrigida antes de retransmitir.
type AliquotaDivergenceError struct {
	InvoiceNumber string
}

func (e *AliquotaDivergenceError) Error() string {
	return fmt.Sprintf(
		"a prefeitura apontou alíquota divergente na nota %s; cancele a NFS-e emitida, corrija a alíquota e transmita novamente",
		e.InvoiceNumber,
	)
}
