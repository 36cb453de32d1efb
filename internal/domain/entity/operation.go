package entity

import "time"

// Estados da operação (máquina de estados do assistente de NFS-e).
//
//   - init: operação criada, nada executado ainda
//   - down: servidor da prefeitura fora do ar, operação abortada
//   - done: todas as notas tentadas tiveram sucesso
//   - failed: alguma nota falhou ou a própria chamada foi rejeitada
//   - nothing: nenhuma nota elegível, nada a fazer
//
// O agregado reflete sempre o pior caso do lote; nunca há estado parcial
// por item no nível da operação.
const (
	OperationStateInit    = "init"
	OperationStateDown    = "down"
	OperationStateDone    = "done"
	OperationStateFailed  = "failed"
	OperationStateNothing = "nothing"
)

// Tipos de operação expostos à tela que invoca o assistente.
const (
	OperationSend     = "send"
	OperationTestSend = "test_send"
	OperationCancel   = "cancel"
	OperationCheck    = "check"
)

// Operation registro persistido de uma execução do assistente, para a UI
// renderizar o desfecho.
type Operation struct {
	ID         string
	CompanyID  string
	Kind       string // ver constantes Operation*
	State      string // ver constantes OperationState*
	Message    string // motivo legível do desfecho (vazio em sucesso)
	InvoiceIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
