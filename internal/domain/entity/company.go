package entity

import "time"

// Company empresa emissora (prestadora do serviço).
//
// Invariante: CertFile e CertPassword estão ambos preenchidos ou ambos
// vazios; nunca se transmite com apenas um dos dois.
type Company struct {
	ID   string
	Name string

	CNPJ               string
	InscricaoMunicipal string
	CityCode           string // código IBGE do município da empresa

	// Regime especial de tributação municipal usado quando o RPS não traz um próprio
	RegimeTributacao string

	// Certificado de assinatura: PKCS#12 em base64 + senha, como no cadastro original
	CertFile     string
	CertPassword string

	// Endpoint da prefeitura (cada município tem o seu)
	NFSeServerHost string // host da sondagem de disponibilidade
	NFSeServerPath string // caminho do serviço de lote

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCertificate informa se a empresa tem certificado e senha cadastrados.
func (c *Company) HasCertificate() bool {
	return c.CertFile != "" && c.CertPassword != ""
}
