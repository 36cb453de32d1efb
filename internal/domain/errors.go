package domain

import (
	"errors"
	"fmt"
)

// Erros de pré-condição: sempre fatais para a operação corrente, nunca
// disparam chamada de rede e são devolvidos literalmente ao chamador.
var (
	ErrNotFound            = errors.New("recurso não encontrado")
	ErrEmptySelection      = errors.New("nenhuma nota fiscal selecionada")
	ErrNotAllServices      = errors.New("todas as notas da seleção devem ser de serviço")
	ErrMissingCredential   = errors.New("empresa sem certificado digital ou senha")
	ErrMissingTaxID        = errors.New("tomador sem CNPJ/CPF")
	ErrMissingMunicipalReg = errors.New("tomador do mesmo município sem inscrição municipal")
	ErrMissingCompanyCNPJ  = errors.New("empresa sem CNPJ")
	ErrNothingToCancel     = errors.New("nenhuma NFS-e transmitida na seleção para cancelar")
	ErrNotYetSent          = errors.New("NFS-e ainda não transmitida")
	ErrEndpointUnavailable = errors.New("servidor da prefeitura indisponível")
)

// CommunicationError falha de transporte na chamada à prefeitura, distinta de
// uma rejeição de protocolo. Carrega o status HTTP quando houver resposta
// (zero quando a conexão nem chegou a completar).
type CommunicationError struct {
	StatusCode int
	Reason     string
}

func (e *CommunicationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("falha de comunicação com a prefeitura (HTTP %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("falha de comunicação com a prefeitura: %s", e.Reason)
}
