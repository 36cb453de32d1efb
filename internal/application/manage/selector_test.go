package manage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de teste
// ──────────────────────────────────────────────────────────────────────────────

func serviceInvoice(id, number string) *entity.Invoice {
	return &entity.Invoice{
		ID:         id,
		Number:     number,
		FiscalType: entity.FiscalTypeService,
	}
}

func transmittedInvoice(id, number string) *entity.Invoice {
	inv := serviceInvoice(id, number)
	inv.NFSeStatus = entity.NFSeStatusTransmitida
	inv.NFSeNumero = "4242"
	inv.NFSeCodigoVerificacao = "ABCD1234"
	return inv
}

// ── SelectForSend ─────────────────────────────────────────────────────────────

func TestSelectForSend_SelecaoVazia(t *testing.T) {
	_, err := manage.SelectForSend(nil)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestSelectForSend_FiltraJaTransmitidas(t *testing.T) {
	eligible, err := manage.SelectForSend([]*entity.Invoice{
		transmittedInvoice("a", "100"),
		serviceInvoice("b", "101"),
	})

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "b", eligible[0].ID, "só a nota ainda não transmitida deve permanecer")
}

func TestSelectForSend_NotaNaoServicoRejeitaTudo(t *testing.T) {
	product := serviceInvoice("b", "101")
	product.FiscalType = entity.FiscalTypeProduct

	_, err := manage.SelectForSend([]*entity.Invoice{
		serviceInvoice("a", "100"),
		product,
	})

	assert.ErrorIs(t, err, domain.ErrNotAllServices,
		"uma nota de produto na seleção deve rejeitar a seleção inteira")
	assert.Contains(t, err.Error(), "101", "o erro deve apontar a nota ofensora")
}

func TestSelectForSend_TodasTransmitidasResultaVazioSemErro(t *testing.T) {
	eligible, err := manage.SelectForSend([]*entity.Invoice{
		transmittedInvoice("a", "100"),
		transmittedInvoice("b", "101"),
	})

	require.NoError(t, err, "seleção que filtra para vazio é nada-a-fazer, não falha")
	assert.Empty(t, eligible)
}

// ── SelectForCancel ───────────────────────────────────────────────────────────

func TestSelectForCancel_SelecaoVazia(t *testing.T) {
	_, err := manage.SelectForCancel(nil)
	assert.ErrorIs(t, err, domain.ErrEmptySelection)
}

func TestSelectForCancel_FiltraNaoTransmitidas(t *testing.T) {
	eligible, err := manage.SelectForCancel([]*entity.Invoice{
		serviceInvoice("a", "100"),
		transmittedInvoice("b", "101"),
	})

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "b", eligible[0].ID)
}

func TestSelectForCancel_NenhumaTransmitidaEhErro(t *testing.T) {
	_, err := manage.SelectForCancel([]*entity.Invoice{
		serviceInvoice("a", "100"),
	})

	assert.ErrorIs(t, err, domain.ErrNothingToCancel,
		"ao contrário do envio, filtrar para vazio no cancelamento é falha visível")
}

func TestSelectForCancel_TransmitidaSemChaveEhErro(t *testing.T) {
	broken := serviceInvoice("a", "100")
	broken.NFSeStatus = entity.NFSeStatusTransmitida
	// sem número nem código de verificação

	_, err := manage.SelectForCancel([]*entity.Invoice{broken})
	assert.ErrorIs(t, err, domain.ErrNotYetSent)
}

// ── SelectForCheck ────────────────────────────────────────────────────────────

func TestSelectForCheck_SelecaoVaziaNaoEhErro(t *testing.T) {
	eligible, err := manage.SelectForCheck(nil)
	require.NoError(t, err, "a consulta não tem guarda de seleção vazia")
	assert.Empty(t, eligible)
}

func TestSelectForCheck_NotaSemChaveEhErro(t *testing.T) {
	_, err := manage.SelectForCheck([]*entity.Invoice{
		transmittedInvoice("a", "100"),
		serviceInvoice("b", "101"),
	})

	assert.ErrorIs(t, err, domain.ErrNotYetSent)
	assert.Contains(t, err.Error(), "101")
}

func TestSelectForCheck_TodasComChave(t *testing.T) {
	eligible, err := manage.SelectForCheck([]*entity.Invoice{
		transmittedInvoice("a", "100"),
		transmittedInvoice("b", "101"),
	})

	require.NoError(t, err)
	assert.Len(t, eligible, 2)
}
