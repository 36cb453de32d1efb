package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalbr/nfse-gateway/internal/application/dto"
	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	"github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	apphttp "github.com/fiscalbr/nfse-gateway/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeOperator struct {
	result *manage.Result
	err    error

	lastOp  string
	lastIDs []string
}

func (f *fakeOperator) Send(_ context.Context, ids []string) (*manage.Result, error) {
	f.lastOp, f.lastIDs = "send", ids
	return f.result, f.err
}

func (f *fakeOperator) TestSend(_ context.Context, ids []string) (*manage.Result, error) {
	f.lastOp, f.lastIDs = "test_send", ids
	return f.result, f.err
}

func (f *fakeOperator) Cancel(_ context.Context, ids []string) (*manage.Result, error) {
	f.lastOp, f.lastIDs = "cancel", ids
	return f.result, f.err
}

func (f *fakeOperator) Check(_ context.Context, ids []string) (*manage.Result, error) {
	f.lastOp, f.lastIDs = "check", ids
	return f.result, f.err
}

type fakeEspelho struct {
	pdf []byte
	err error
}

func (f *fakeEspelho) Generate(_ context.Context, _ string) ([]byte, error) {
	return f.pdf, f.err
}

func buildApp(operator *fakeOperator, espelho *fakeEspelho) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Operator:  operator,
		Espelho:   espelho,
		JWTSecret: testJWTSecret,
	})
	return app
}

func doPost(t *testing.T, app *fiber.App, path string, ids []string) (int, []byte) {
	t.Helper()
	body, err := json.Marshal(dto.NFSeOperationRequest{InvoiceIDs: ids})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

// ──────────────────────────────────────────────────────────────────────────────
// Operações
// ──────────────────────────────────────────────────────────────────────────────

func TestEnviar_Sucesso(t *testing.T) {
	operator := &fakeOperator{result: &manage.Result{
		OperationID: "op-1",
		State:       entity.OperationStateDone,
	}}
	app := buildApp(operator, &fakeEspelho{})

	status, body := doPost(t, app, "/api/nfse/enviar", []string{"a", "b"})

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "send", operator.lastOp)
	assert.Equal(t, []string{"a", "b"}, operator.lastIDs)

	var out dto.NFSeOperationResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "op-1", out.OperationID)
	assert.Equal(t, entity.OperationStateDone, out.State)
	assert.Empty(t, out.Error)
}

func TestEnviar_SemToken(t *testing.T) {
	app := buildApp(&fakeOperator{}, &fakeEspelho{})

	req := httptest.NewRequest("POST", "/api/nfse/enviar", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestEnviar_PreCondicao(t *testing.T) {
	operator := &fakeOperator{
		result: &manage.Result{OperationID: "op-1", State: entity.OperationStateFailed},
		err:    fmt.Errorf("nota 100: %w", domain.ErrNotAllServices),
	}
	app := buildApp(operator, &fakeEspelho{})

	status, body := doPost(t, app, "/api/nfse/enviar", []string{"a"})

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	var out dto.NFSeOperationResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, entity.OperationStateFailed, out.State)
	assert.Contains(t, out.Error, "serviço")
}

func TestEnviar_PrefeituraForaDoAr(t *testing.T) {
	operator := &fakeOperator{
		result: &manage.Result{OperationID: "op-1", State: entity.OperationStateDown},
		err:    fmt.Errorf("%w: connection refused", domain.ErrEndpointUnavailable),
	}
	app := buildApp(operator, &fakeEspelho{})

	status, body := doPost(t, app, "/api/nfse/enviar", []string{"a"})

	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	var out dto.NFSeOperationResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, entity.OperationStateDown, out.State)
}

func TestEnviar_FalhaDeComunicacao(t *testing.T) {
	operator := &fakeOperator{
		result: &manage.Result{OperationID: "op-1", State: entity.OperationStateFailed},
		err:    &domain.CommunicationError{StatusCode: 503, Reason: "service unavailable"},
	}
	app := buildApp(operator, &fakeEspelho{})

	status, _ := doPost(t, app, "/api/nfse/enviar", []string{"a"})
	assert.Equal(t, fiber.StatusBadGateway, status)
}

func TestEnviar_RejeicaoTrazRelatorio(t *testing.T) {
	operator := &fakeOperator{
		result: &manage.Result{
			OperationID: "op-1",
			State:       entity.OperationStateFailed,
			Report: map[string][]nfse.Alert{
				"100": {{Code: "1304", Message: "código de serviço inválido"}},
			},
		},
		err: &nfse.RejectionError{Report: map[string][]nfse.Alert{
			"100": {{Code: "1304", Message: "código de serviço inválido"}},
		}},
	}
	app := buildApp(operator, &fakeEspelho{})

	status, body := doPost(t, app, "/api/nfse/enviar", []string{"a"})

	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	var out dto.NFSeOperationResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Contains(t, out.Report, "100")
	assert.Equal(t, "1304", out.Report["100"][0].Code)
}

func TestConsultar_RoteiaParaCheck(t *testing.T) {
	operator := &fakeOperator{result: &manage.Result{
		OperationID: "op-1",
		State:       entity.OperationStateDone,
	}}
	app := buildApp(operator, &fakeEspelho{})

	status, _ := doPost(t, app, "/api/nfse/consultar", []string{"a"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "check", operator.lastOp)
}

func TestCancelar_RoteiaParaCancel(t *testing.T) {
	operator := &fakeOperator{result: &manage.Result{
		OperationID: "op-1",
		State:       entity.OperationStateDone,
	}}
	app := buildApp(operator, &fakeEspelho{})

	status, _ := doPost(t, app, "/api/nfse/cancelar", []string{"a"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "cancel", operator.lastOp)
}

// ──────────────────────────────────────────────────────────────────────────────
// Espelho
// ──────────────────────────────────────────────────────────────────────────────

func TestEspelho_DevolvePDF(t *testing.T) {
	app := buildApp(&fakeOperator{}, &fakeEspelho{pdf: []byte("%PDF-1.7 fake")})

	req := httptest.NewRequest("GET", "/api/nfse/inv-1/espelho", nil)
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 fake", string(body))
}

func TestEspelho_NotaNaoTransmitida(t *testing.T) {
	app := buildApp(&fakeOperator{}, &fakeEspelho{
		err: fmt.Errorf("nota 100: %w", domain.ErrNotYetSent),
	})

	req := httptest.NewRequest("GET", "/api/nfse/inv-1/espelho", nil)
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestEspelho_NotaInexistente(t *testing.T) {
	app := buildApp(&fakeOperator{}, &fakeEspelho{
		err: fmt.Errorf("nota inv-1: %w", domain.ErrNotFound),
	})

	req := httptest.NewRequest("GET", "/api/nfse/inv-1/espelho", nil)
	req.Header.Set("Authorization", validToken(t))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
