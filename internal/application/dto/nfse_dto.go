package dto

import (
	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

// NFSeOperationRequest seleção de notas sobre a qual a operação atua.
type NFSeOperationRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
}

// AlertDTO um alerta ou erro da prefeitura, já ligado à nota de origem.
type AlertDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NFSeOperationResponse desfecho de uma operação do assistente.
// Advisories traz avisos não fatais; Report só vem em rejeição, indexado pelo
// número da nota.
type NFSeOperationResponse struct {
	OperationID string                `json:"operation_id"`
	State       string                `json:"state"`
	Advisories  []string              `json:"advisories,omitempty"`
	Report      map[string][]AlertDTO `json:"report,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// FromResult converte o resultado do caso de uso para a resposta HTTP.
func FromResult(result *manage.Result, err error) NFSeOperationResponse {
	resp := NFSeOperationResponse{
		OperationID: result.OperationID,
		State:       result.State,
		Advisories:  result.Advisories,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if len(result.Report) > 0 {
		resp.Report = make(map[string][]AlertDTO, len(result.Report))
		for number, alerts := range result.Report {
			resp.Report[number] = toAlertDTOs(alerts)
		}
	}
	return resp
}

func toAlertDTOs(alerts []nfse.Alert) []AlertDTO {
	out := make([]AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertDTO{Code: a.Code, Message: a.Message})
	}
	return out
}

// ErrorResponse corpo de erro HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
