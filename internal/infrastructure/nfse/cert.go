package nfse

import (
	"crypto/tls"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/pkcs12"

	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

var _ manage.CertificateProvisioner = (*Provisioner)(nil)

// Provisioner materializa o certificado PKCS#12 do cadastro da empresa em
// memória, com escopo de uma operação. Nenhum arquivo temporário é criado;
// o material bruto é zerado no Release do certificado devolvido.
type Provisioner struct{}

// NewProvisioner constrói o provisionador.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Provision decodifica o certificado da empresa (PKCS#12 em base64 + senha).
// Empresa sem certificado ou senha falha antes de qualquer decodificação.
func (p *Provisioner) Provision(company *entity.Company) (*domnfse.ScopedCertificate, error) {
	if !company.HasCertificate() {
		return nil, fmt.Errorf("empresa %s: %w", company.Name, domain.ErrMissingCredential)
	}

	raw, err := base64.StdEncoding.DecodeString(company.CertFile)
	if err != nil {
		return nil, fmt.Errorf("decodificando certificado da empresa %s: %w", company.Name, err)
	}

	key, cert, err := pkcs12.Decode(raw, company.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("abrindo PKCS#12 da empresa %s: %w", company.Name, err)
	}

	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}
	return domnfse.NewScopedCertificate(uuid.NewString(), tlsCert, raw), nil
}
