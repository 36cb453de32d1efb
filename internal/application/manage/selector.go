package manage

import (
	"fmt"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// SelectForSend filtra a seleção para transmissão: notas de serviço ainda não
// transmitidas.
//
// A pré-condição de tipo fiscal é tudo-ou-nada: havendo qualquer nota que não
// seja de serviço entre as candidatas, a seleção inteira é rejeitada em vez de
// descartar silenciosamente as não-serviço. Um retorno vazio sem erro
// significa "nada a fazer" (desfecho nothing), não uma falha.
func SelectForSend(selection []*entity.Invoice) ([]*entity.Invoice, error) {
	if len(selection) == 0 {
		return nil, domain.ErrEmptySelection
	}

	var eligible []*entity.Invoice
	for _, inv := range selection {
		if inv.Transmitida() {
			continue
		}
		if inv.FiscalType != entity.FiscalTypeService {
			return nil, fmt.Errorf("nota %s: %w", inv.Number, domain.ErrNotAllServices)
		}
		eligible = append(eligible, inv)
	}
	return eligible, nil
}

// SelectForCancel filtra a seleção para cancelamento: apenas notas já
// transmitidas, cada uma carregando número e código de verificação.
//
// Seleção ativa não vazia que filtra para vazio é falha de pré-condição
// visível ao usuário (ErrNothingToCancel), diferente do desfecho silencioso
// nothing do envio.
func SelectForCancel(selection []*entity.Invoice) ([]*entity.Invoice, error) {
	if len(selection) == 0 {
		return nil, domain.ErrEmptySelection
	}

	var eligible []*entity.Invoice
	for _, inv := range selection {
		if !inv.Transmitida() {
			continue
		}
		if !inv.TemChaveNFSe() {
			return nil, fmt.Errorf("nota %s: %w", inv.Number, domain.ErrNotYetSent)
		}
		eligible = append(eligible, inv)
	}
	if len(eligible) == 0 {
		return nil, domain.ErrNothingToCancel
	}
	return eligible, nil
}

// SelectForCheck valida a seleção para consulta: cada nota precisa ter sido
// transmitida (número + código de verificação presentes). Não há filtro por
// status nem guarda de seleção vazia; a assimetria com envio/cancelamento é o
// comportamento observado do assistente original e é preservada de propósito.
func SelectForCheck(selection []*entity.Invoice) ([]*entity.Invoice, error) {
	for _, inv := range selection {
		if !inv.TemChaveNFSe() {
			return nil, fmt.Errorf("nota %s: %w", inv.Number, domain.ErrNotYetSent)
		}
	}
	return selection, nil
}
