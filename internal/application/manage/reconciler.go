package manage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

// InvoiceUpdate escrita pendente sobre uma nota, produzida pela reconciliação.
type InvoiceUpdate struct {
	Invoice           *entity.Invoice
	Status            string
	Numero            string
	CodigoVerificacao string
	Retorno           string
}

// Reconciliation desfecho da reconciliação de uma resposta da prefeitura.
//
// Updates vem na ordem em que devem ser persistidos. Quando Divergence não é
// nil, os Updates acumulados até o alerta 208 devem ser commitados antes de o
// erro ser propagado; os alertas seguintes da mesma resposta não foram
// processados.
type Reconciliation struct {
	Updates    []InvoiceUpdate
	State      string // entity.OperationState*
	Advisories []string
	Divergence *nfse.AliquotaDivergenceError
	Rejection  *nfse.RejectionError
}

// Reconcile interpreta a resposta heterogênea da prefeitura (chaves emitidas,
// alertas, erros) e mapeia cada item de volta à nota de origem pela chave do
// RPS.
func Reconcile(kind string, mode nfse.Mode, res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	if !res.Success || len(res.Errors) > 0 {
		return reconcileRejection(kind, res, byKey)
	}

	switch kind {
	case entity.OperationSend, entity.OperationTestSend:
		if mode == nfse.ModeValidate {
			return reconcileValidation(res, byKey)
		}
		return reconcileSend(res, byKey)
	case entity.OperationCancel:
		return reconcileCancel(res, byKey)
	default:
		return reconcileCheck(res, byKey)
	}
}

// reconcileValidation: a validação com sucesso e zero alertas é em si uma
// condição terminal informativa ("validado, nada emitido"), nunca uma mutação
// de dados.
func reconcileValidation(res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	rec := Reconciliation{State: entity.OperationStateDone}
	if len(res.Warnings) == 0 {
		rec.Advisories = append(rec.Advisories, "lote validado pela prefeitura; nenhuma NFS-e foi emitida")
		return rec
	}
	for _, key := range res.SortedWarningKeys() {
		for _, alert := range res.Warnings[key] {
			rec.Advisories = append(rec.Advisories, advisoryText(key, byKey, alert))
		}
	}
	return rec
}

// reconcileSend: cada chave emitida marca a nota de origem como transmitida e
// grava número + código de verificação. Alertas são informativos, exceto o
// código 208 (alíquota divergente): ao encontrá-lo, a reconciliação para na
// hora — os Updates já colhidos serão commitados e a operação aborta com erro
// fatal apontando a nota; alertas posteriores não são processados.
func reconcileSend(res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	rec := Reconciliation{State: entity.OperationStateDone}

	for _, issued := range res.Issued {
		inv, ok := byKey[issued.Key]
		if !ok {
			continue
		}
		rec.Updates = append(rec.Updates, InvoiceUpdate{
			Invoice:           inv,
			Status:            entity.NFSeStatusTransmitida,
			Numero:            issued.Numero,
			CodigoVerificacao: issued.CodigoVerificacao,
		})
	}

	for _, key := range res.SortedWarningKeys() {
		for _, alert := range res.Warnings[key] {
			if alert.Code == nfse.CodeAliquotaDivergente {
				rec.State = entity.OperationStateFailed
				rec.Divergence = &nfse.AliquotaDivergenceError{InvoiceNumber: invoiceNumberFor(key, byKey)}
				return rec
			}
			rec.Advisories = append(rec.Advisories, advisoryText(key, byKey, alert))
		}
	}
	return rec
}

// reconcileCancel: o cancelamento é atômico no lote; sucesso marca todas as
// notas tentadas como canceladas.
func reconcileCancel(res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	rec := Reconciliation{State: entity.OperationStateDone}
	for _, key := range sortedInvoiceKeys(byKey) {
		rec.Updates = append(rec.Updates, InvoiceUpdate{
			Invoice: byKey[key],
			Status:  entity.NFSeStatusCancelada,
			// número e código de verificação permanecem os emitidos
			Numero:            byKey[key].NFSeNumero,
			CodigoVerificacao: byKey[key].NFSeCodigoVerificacao,
		})
	}
	for _, key := range res.SortedWarningKeys() {
		for _, alert := range res.Warnings[key] {
			rec.Advisories = append(rec.Advisories, advisoryText(key, byKey, alert))
		}
	}
	return rec
}

// reconcileCheck: consulta é somente leitura. NFS-e reportada como cancelada
// ou extraviada vira falha advisória (mesmo canal do usuário, nenhuma escrita
// de dados); fora isso a consulta conclui em silêncio.
func reconcileCheck(res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	rec := Reconciliation{State: entity.OperationStateDone}
	for _, key := range res.SortedWarningKeys() {
		for _, alert := range res.Warnings[key] {
			switch alert.Code {
			case nfse.CodeNFSeCancelada, nfse.CodeNFSeExtraviada:
				rec.State = entity.OperationStateFailed
				rec.Advisories = append(rec.Advisories, advisoryText(key, byKey, alert))
			}
		}
	}
	return rec
}

// reconcileRejection: rejeição de protocolo. Nenhuma nota é marcada como
// transmitida/cancelada; as notas tentadas recebem o rótulo de falha com o
// motivo, e o conjunto completo de alertas+erros vira um relatório único
// indexado pelo número da nota.
func reconcileRejection(kind string, res *nfse.TransmissionResult, byKey map[nfse.RPSKey]*entity.Invoice) Reconciliation {
	rec := Reconciliation{State: entity.OperationStateFailed}

	report := make(map[string][]nfse.Alert)
	for _, key := range res.SortedWarningKeys() {
		report[invoiceNumberFor(key, byKey)] = append(report[invoiceNumberFor(key, byKey)], res.Warnings[key]...)
	}
	for _, key := range res.SortedErrorKeys() {
		report[invoiceNumberFor(key, byKey)] = append(report[invoiceNumberFor(key, byKey)], res.Errors[key]...)
	}
	rec.Rejection = &nfse.RejectionError{Report: report}

	failureStatus := entity.NFSeStatusFalhaTransmissao
	if kind == entity.OperationCancel {
		failureStatus = entity.NFSeStatusFalhaCancelamento
	}
	if kind == entity.OperationCheck || kind == entity.OperationTestSend {
		// consulta e validação não escrevem estado nas notas
		return rec
	}

	for _, key := range sortedInvoiceKeys(byKey) {
		inv := byKey[key]
		rec.Updates = append(rec.Updates, InvoiceUpdate{
			Invoice:           inv,
			Status:            failureStatus,
			Numero:            inv.NFSeNumero,
			CodigoVerificacao: inv.NFSeCodigoVerificacao,
			Retorno:           retornoFor(key, res),
		})
	}
	return rec
}

// retornoFor compõe o texto de retorno da nota a partir dos erros/alertas da
// sua chave; sem item específico, fica o motivo genérico do lote.
func retornoFor(key nfse.RPSKey, res *nfse.TransmissionResult) string {
	var parts []string
	for _, alert := range res.Errors[key] {
		parts = append(parts, fmt.Sprintf("%s - %s", alert.Code, alert.Message))
	}
	for _, alert := range res.Warnings[key] {
		parts = append(parts, fmt.Sprintf("%s - %s", alert.Code, alert.Message))
	}
	if len(parts) == 0 {
		return "lote rejeitado pela prefeitura"
	}
	return strings.Join(parts, "; ")
}

func advisoryText(key nfse.RPSKey, byKey map[nfse.RPSKey]*entity.Invoice, alert nfse.Alert) string {
	return fmt.Sprintf("nota %s: %s - %s", invoiceNumberFor(key, byKey), alert.Code, alert.Message)
}

func invoiceNumberFor(key nfse.RPSKey, byKey map[nfse.RPSKey]*entity.Invoice) string {
	if inv, ok := byKey[key]; ok {
		return inv.Number
	}
	return key.String()
}

func sortedInvoiceKeys(byKey map[nfse.RPSKey]*entity.Invoice) []nfse.RPSKey {
	keys := make([]nfse.RPSKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	// ordem estável para escritas determinísticas
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Serie != keys[j].Serie {
			return keys[i].Serie < keys[j].Serie
		}
		return keys[i].Numero < keys[j].Numero
	})
	return keys
}
