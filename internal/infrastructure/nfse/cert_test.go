package nfse_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	infranfse "github.com/fiscalbr/nfse-gateway/internal/infrastructure/nfse"
)

func TestProvision_EmpresaSemCertificado(t *testing.T) {
	p := infranfse.NewProvisioner()

	_, err := p.Provision(&entity.Company{Name: "Sem Cert Ltda"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestProvision_EmpresaSemSenha(t *testing.T) {
	p := infranfse.NewProvisioner()

	_, err := p.Provision(&entity.Company{
		Name:     "Sem Senha Ltda",
		CertFile: base64.StdEncoding.EncodeToString([]byte("pkcs12")),
	})
	assert.ErrorIs(t, err, domain.ErrMissingCredential,
		"certificado sem senha conta como credencial ausente")
}

func TestProvision_Base64Invalido(t *testing.T) {
	p := infranfse.NewProvisioner()

	_, err := p.Provision(&entity.Company{
		Name:         "Base64 Ruim Ltda",
		CertFile:     "não é base64!!!",
		CertPassword: "segredo",
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrMissingCredential)
}

func TestProvision_PKCS12Invalido(t *testing.T) {
	p := infranfse.NewProvisioner()

	_, err := p.Provision(&entity.Company{
		Name:         "P12 Ruim Ltda",
		CertFile:     base64.StdEncoding.EncodeToString([]byte("isto não é um PKCS#12")),
		CertPassword: "segredo",
	})
	assert.Error(t, err)
}
