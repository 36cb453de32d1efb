package nfse

import "crypto/tls"

// ScopedCertificate material de certificado decodificado, com escopo de uma
// única transmissão. Substitui o arquivo temporário do fluxo original: o
// material fica só em memória e é zerado no Release, garantido por defer em
// todos os caminhos de saída (sucesso, rejeição ou falha de comunicação).
type ScopedCertificate struct {
	// ID identificador único desta materialização (não reutilizado entre chamadas)
	ID string
	// TLS certificado de cliente pronto para o handshake
	TLS tls.Certificate

	raw      []byte
	released bool
}

// NewScopedCertificate embala o material decodificado. raw é o conteúdo bruto
// do PKCS#12, retido apenas para ser zerado no Release.
func NewScopedCertificate(id string, tlsCert tls.Certificate, raw []byte) *ScopedCertificate {
	return &ScopedCertificate{ID: id, TLS: tlsCert, raw: raw}
}

// Release apaga o material do certificado. Idempotente.
func (c *ScopedCertificate) Release() {
	if c.released {
		return
	}
	for i := range c.raw {
		c.raw[i] = 0
	}
	c.raw = nil
	c.TLS = tls.Certificate{}
	c.released = true
}

// Released informa se o material já foi liberado.
func (c *ScopedCertificate) Released() bool {
	return c.released
}
