package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/fiscalbr/nfse-gateway/internal/application/dto"
	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

// NFSeOperator porta do handler para as operações do assistente; nos testes
// injeta-se um fake.
type NFSeOperator interface {
	Send(ctx context.Context, invoiceIDs []string) (*manage.Result, error)
	TestSend(ctx context.Context, invoiceIDs []string) (*manage.Result, error)
	Cancel(ctx context.Context, invoiceIDs []string) (*manage.Result, error)
	Check(ctx context.Context, invoiceIDs []string) (*manage.Result, error)
}

// EspelhoService porta do handler para a geração do espelho em PDF.
type EspelhoService interface {
	Generate(ctx context.Context, invoiceID string) ([]byte, error)
}

// NFSeHandler atende as rotas do assistente de NFS-e (protegido).
type NFSeHandler struct {
	operator NFSeOperator
	espelho  EspelhoService
}

// NewNFSeHandler constrói o handler.
func NewNFSeHandler(operator NFSeOperator, espelho EspelhoService) *NFSeHandler {
	return &NFSeHandler{operator: operator, espelho: espelho}
}

// Enviar transmite as notas selecionadas como lote de RPS.
// POST /api/nfse/enviar
func (h *NFSeHandler) Enviar(c *fiber.Ctx) error {
	return h.operate(c, h.operator.Send)
}

// EnviarTeste valida o lote na prefeitura sem emitir NFS-e.
// POST /api/nfse/enviar-teste
func (h *NFSeHandler) EnviarTeste(c *fiber.Ctx) error {
	return h.operate(c, h.operator.TestSend)
}

// Cancelar pede o cancelamento das NFS-e emitidas das notas selecionadas.
// POST /api/nfse/cancelar
func (h *NFSeHandler) Cancelar(c *fiber.Ctx) error {
	return h.operate(c, h.operator.Cancel)
}

// Consultar consulta a situação das NFS-e das notas selecionadas.
// POST /api/nfse/consultar
func (h *NFSeHandler) Consultar(c *fiber.Ctx) error {
	return h.operate(c, h.operator.Check)
}

// Espelho devolve o PDF do espelho de uma nota transmitida.
// GET /api/nfse/:id/espelho
func (h *NFSeHandler) Espelho(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id obrigatório"})
	}
	pdf, err := h.espelho.Generate(c.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota não encontrada"})
		}
		if errors.Is(err, domain.ErrNotYetSent) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NOT_SENT", Message: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="espelho-%s.pdf"`, id))
	return c.Send(pdf)
}

func (h *NFSeHandler) operate(c *fiber.Ctx, op func(context.Context, []string) (*manage.Result, error)) error {
	if GetCompanyID(c) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.NFSeOperationRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}

	result, err := op(c.Context(), in.InvoiceIDs)
	if err != nil {
		return h.operationError(c, result, err)
	}
	return c.JSON(dto.FromResult(result, nil))
}

// operationError mapeia a taxonomia de erros da operação para o status HTTP.
// Quando há um resultado (operação registrada), o corpo é o desfecho completo;
// pré-condições sem registro viram ErrorResponse simples.
func (h *NFSeHandler) operationError(c *fiber.Ctx, result *manage.Result, err error) error {
	status := fiber.StatusInternalServerError
	code := "INTERNAL"

	var commErr *domain.CommunicationError
	var rejErr *nfse.RejectionError
	var divErr *nfse.AliquotaDivergenceError
	switch {
	case errors.Is(err, domain.ErrEndpointUnavailable):
		status, code = fiber.StatusServiceUnavailable, "ENDPOINT_DOWN"
	case errors.As(err, &commErr):
		status, code = fiber.StatusBadGateway, "COMMUNICATION"
	case errors.As(err, &rejErr), errors.As(err, &divErr):
		status, code = fiber.StatusUnprocessableEntity, "REJECTED"
	case errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrNotAllServices),
		errors.Is(err, domain.ErrMissingCredential),
		errors.Is(err, domain.ErrMissingTaxID),
		errors.Is(err, domain.ErrMissingMunicipalReg),
		errors.Is(err, domain.ErrMissingCompanyCNPJ),
		errors.Is(err, domain.ErrNothingToCancel),
		errors.Is(err, domain.ErrNotYetSent):
		status, code = fiber.StatusUnprocessableEntity, "PRECONDITION"
	case errors.Is(err, domain.ErrNotFound):
		status, code = fiber.StatusNotFound, "NOT_FOUND"
	}

	if result != nil {
		return c.Status(status).JSON(dto.FromResult(result, err))
	}
	return c.Status(status).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
}
