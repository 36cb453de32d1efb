package nfse

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Marcadores de protocolo do RPS.
const (
	// TipoRPS 1 = RPS comum (recibo provisório de serviços)
	TipoRPS = 1
	// StatusRPSNormal marcador de rascunho/normal na emissão
	StatusRPSNormal = "N"
)

// RPSKey identifica um RPS dentro do lote (série + sequência). É a chave pela
// qual a resposta da prefeitura referencia cada item.
type RPSKey struct {
	Serie  string
	Numero int64
}

func (k RPSKey) String() string {
	return fmt.Sprintf("%s/%d", k.Serie, k.Numero)
}

// Tomador projeção achatada dos campos do tomador que vão para o fio.
type Tomador struct {
	CNPJCPF            string
	TipoPessoa         string
	InscricaoMunicipal string // preenchido apenas quando empresa e tomador estão no município de referência
	InscricaoEstadual  string
	RazaoSocial        string
	Logradouro         string
	Numero             string
	Complemento        string
	Bairro             string
	CityCode           string
	UF                 string
	CEP                string
	Email              string
}

// RPS unidade de saída do lote: projeção de Invoice+Company+Partner no formato
// do protocolo, com a decomposição de impostos já calculada.
type RPS struct {
	Key         RPSKey
	Tipo        int
	DataEmissao time.Time
	Status      string
	Tributacao  string // regime de tributação (default da empresa quando a nota não traz)

	ValorServicos decimal.Decimal
	ValorDeducoes decimal.Decimal
	ValorPIS      decimal.Decimal
	ValorCOFINS   decimal.Decimal
	ValorINSS     decimal.Decimal
	ValorIR       decimal.Decimal
	ValorCSLL     decimal.Decimal

	CodigoServico string
	Aliquota      decimal.Decimal
	ISSRetido     bool

	Tomador       Tomador
	Discriminacao string

	// InvoiceID referência de volta à nota de origem (não vai para o fio)
	InvoiceID string
}

// Batch lote de RPS com cabeçalho agregado. Construído a cada operação e
// descartado após a reconciliação.
type Batch struct {
	CNPJRemetente      string
	InscricaoMunicipal string
	Transacao          bool // true: lote atômico (tudo ou nada na prefeitura)
	DtInicio           time.Time
	DtFim              time.Time
	QtdRPS             int
	ValorTotalServicos decimal.Decimal
	ValorTotalDeducoes decimal.Decimal
	Versao             string

	RPS []RPS
}

// Endpoint endereço do serviço da prefeitura, resolvido do cadastro da empresa.
type Endpoint struct {
	Host string // host da sondagem de disponibilidade
	Path string // caminho do serviço de lote
}

// URL devolve a URL completa do serviço, garantindo esquema seguro.
func (e Endpoint) URL() string {
	host := strings.TrimSuffix(NormalizeHost(e.Host), "/")
	path := e.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

// NormalizeHost garante esquema https no host do endpoint. Hosts sem esquema
// ganham https://; http:// é promovido a https:// (o canal exige certificado
// de cliente).
func NormalizeHost(host string) string {
	switch {
	case strings.HasPrefix(host, "https://"):
		return host
	case strings.HasPrefix(host, "http://"):
		return "https://" + strings.TrimPrefix(host, "http://")
	default:
		return "https://" + host
	}
}

// OnlyDigits remove tudo que não for dígito (normalização dos campos
// numéricos/códigos antes da transmissão).
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
