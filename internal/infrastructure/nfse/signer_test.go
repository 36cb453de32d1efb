package nfse_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	infranfse "github.com/fiscalbr/nfse-gateway/internal/infrastructure/nfse"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de teste
// ──────────────────────────────────────────────────────────────────────────────

// testCertificate gera uma chave RSA e um certificado autoassinado em memória.
func testCertificate(t *testing.T) (*domnfse.ScopedCertificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Prestadora Exemplo Ltda"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	tlsCert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return domnfse.NewScopedCertificate("cert-teste", tlsCert, []byte{1, 2, 3}), key
}

func testRPS() *domnfse.RPS {
	return &domnfse.RPS{
		Key:           domnfse.RPSKey{Serie: "A", Numero: 42},
		Tipo:          domnfse.TipoRPS,
		DataEmissao:   time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Status:        domnfse.StatusRPSNormal,
		Tributacao:    "T",
		ValorServicos: decimal.NewFromFloat(1500.00),
		ValorDeducoes: decimal.NewFromFloat(75.00),
		CodigoServico: "07161",
		Aliquota:      decimal.NewFromFloat(5.00),
		ISSRetido:     false,
		Tomador: domnfse.Tomador{
			CNPJCPF:    "98765432000110",
			TipoPessoa: "J",
		},
		Discriminacao: "consultoria",
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Cadeia de assinatura do RPS
// ──────────────────────────────────────────────────────────────────────────────

// A cadeia esperada para o RPS de teste, campo a campo:
//
//	87143470          inscrição do prestador (8 dígitos)
//	"A    "           série (5 posições, espaço à direita)
//	000000000042      número do RPS (12 dígitos)
//	20260815          data de emissão AAAAMMDD
//	T                 regime de tributação
//	N                 status
//	N                 ISS retido
//	000000000150000   valor dos serviços em centavos (15 dígitos)
//	000000000007500   valor das deduções em centavos (15 dígitos)
//	07161             código do serviço (5 dígitos)
//	2                 indicador CNPJ
//	98765432000110    documento do tomador (14 dígitos)
const expectedChain = "87143470" + "A    " + "000000000042" + "20260815" + "T" + "N" + "N" +
	"000000000150000" + "000000000007500" + "07161" + "2" + "98765432000110"

func TestRPSSignature_AssinaACadeiaDeLarguraFixa(t *testing.T) {
	cert, key := testCertificate(t)
	signer := infranfse.NewSigner()

	sig, err := signer.RPSSignature(testRPS(), "8.714.347-0", cert)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err, "a assinatura deve vir em base64")

	digest := sha1.Sum([]byte(expectedChain))
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, digest[:], raw),
		"a assinatura deve verificar contra a cadeia de largura fixa esperada")
}

func TestRPSSignature_TomadorPessoaFisica(t *testing.T) {
	cert, key := testCertificate(t)
	signer := infranfse.NewSigner()

	rps := testRPS()
	rps.Tomador.TipoPessoa = "F"
	rps.Tomador.CNPJCPF = "12345678901"

	sig, err := signer.RPSSignature(rps, "87143470", cert)
	require.NoError(t, err)

	chain := "87143470" + "A    " + "000000000042" + "20260815" + "T" + "N" + "N" +
		"000000000150000" + "000000000007500" + "07161" + "1" + "00012345678901"
	digest := sha1.Sum([]byte(chain))
	raw, _ := base64.StdEncoding.DecodeString(sig)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, digest[:], raw),
		"CPF leva indicador 1 e preenche 14 posições com zeros")
}

func TestRPSSignature_ISSRetidoMudaACadeia(t *testing.T) {
	cert, _ := testCertificate(t)
	signer := infranfse.NewSigner()

	normal := testRPS()
	retido := testRPS()
	retido.ISSRetido = true

	s1, err := signer.RPSSignature(normal, "87143470", cert)
	require.NoError(t, err)
	s2, err := signer.RPSSignature(retido, "87143470", cert)
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2, "a retenção na fonte entra na cadeia assinada")
}

func TestRPSSignature_CertificadoSemChaveRSA(t *testing.T) {
	cert := domnfse.NewScopedCertificate("sem-chave", tls.Certificate{}, nil)
	signer := infranfse.NewSigner()

	_, err := signer.RPSSignature(testRPS(), "87143470", cert)
	assert.Error(t, err)
}

func TestCancellationSignature_Verificavel(t *testing.T) {
	cert, key := testCertificate(t)
	signer := infranfse.NewSigner()

	sig, err := signer.CancellationSignature("87143470", "9001", cert)
	require.NoError(t, err)

	chain := "87143470" + "000000009001"
	digest := sha1.Sum([]byte(chain))
	raw, _ := base64.StdEncoding.DecodeString(sig)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, digest[:], raw))
}

// ──────────────────────────────────────────────────────────────────────────────
// Assinatura XML-DSig do pedido
// ──────────────────────────────────────────────────────────────────────────────

func TestSignXML_EnvelopaAssinaturaNoPedido(t *testing.T) {
	cert, _ := testCertificate(t)
	signer := infranfse.NewSigner()
	builder := infranfse.NewXMLBuilder(signer)

	batch := &domnfse.Batch{
		CNPJRemetente:      "12345678000195",
		InscricaoMunicipal: "87143470",
		Transacao:          true,
		DtInicio:           time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		DtFim:              time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		QtdRPS:             1,
		ValorTotalServicos: decimal.NewFromFloat(1500.00),
		ValorTotalDeducoes: decimal.NewFromFloat(75.00),
		Versao:             "1",
		RPS:                []domnfse.RPS{*testRPS()},
	}

	doc, err := builder.BuildLote(batch, cert, domnfse.ModeSubmit)
	require.NoError(t, err)

	assert.Equal(t, "PedidoEnvioLoteRPS", doc.Root().Tag)
	require.NotNil(t, doc.FindElement("//Signature/SignedInfo/Reference/DigestValue"))
	require.NotNil(t, doc.FindElement("//Signature/SignatureValue"))
	require.NotNil(t, doc.FindElement("//Signature/KeyInfo/X509Data/X509Certificate"),
		"o certificado vai embutido na assinatura")
	require.NotNil(t, doc.FindElement("//RPS/Assinatura"), "cada RPS carrega a sua cadeia assinada")
}

func TestBuildLote_ModoValidacaoTrocaARaiz(t *testing.T) {
	cert, _ := testCertificate(t)
	builder := infranfse.NewXMLBuilder(infranfse.NewSigner())

	batch := &domnfse.Batch{
		CNPJRemetente:      "12345678000195",
		InscricaoMunicipal: "87143470",
		Transacao:          true,
		DtInicio:           time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		DtFim:              time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		QtdRPS:             1,
		ValorTotalServicos: decimal.NewFromFloat(1500.00),
		ValorTotalDeducoes: decimal.Zero,
		Versao:             "1",
		RPS:                []domnfse.RPS{*testRPS()},
	}

	doc, err := builder.BuildLote(batch, cert, domnfse.ModeValidate)
	require.NoError(t, err)
	assert.Equal(t, "TesteEnvioLoteRPS", doc.Root().Tag,
		"a validação usa o mesmo corpo com raiz própria")
}

func TestBuildCancelamento_UmDetalhePorNFSe(t *testing.T) {
	cert, _ := testCertificate(t)
	builder := infranfse.NewXMLBuilder(infranfse.NewSigner())

	req := &domnfse.CancelRequest{
		CNPJRemetente:      "12345678000195",
		InscricaoMunicipal: "87143470",
		Items: []domnfse.CancelItem{
			{Key: domnfse.RPSKey{Serie: "A", Numero: 1}, NumeroNFSe: "9001", CodigoVerificacao: "AAAA1111"},
			{Key: domnfse.RPSKey{Serie: "A", Numero: 2}, NumeroNFSe: "9002", CodigoVerificacao: "BBBB2222"},
		},
	}

	doc, err := builder.BuildCancelamento(req, cert)
	require.NoError(t, err)

	assert.Equal(t, "PedidoCancelamentoNFe", doc.Root().Tag)
	detalhes := doc.FindElements("//Detalhe")
	require.Len(t, detalhes, 2)
	assert.NotNil(t, doc.FindElement("//Detalhe/AssinaturaCancelamento"))
	numero := doc.FindElement("//Detalhe/ChaveNFe/NumeroNFe")
	require.NotNil(t, numero)
	assert.Equal(t, "9001", numero.Text())
}

func TestBuildConsulta_SemAssinaturaDeCancelamento(t *testing.T) {
	cert, _ := testCertificate(t)
	builder := infranfse.NewXMLBuilder(infranfse.NewSigner())

	req := &domnfse.QueryRequest{
		CNPJRemetente:      "12345678000195",
		InscricaoMunicipal: "87143470",
		Items: []domnfse.CancelItem{
			{Key: domnfse.RPSKey{Serie: "A", Numero: 1}, NumeroNFSe: "9001", CodigoVerificacao: "AAAA1111"},
		},
	}

	doc, err := builder.BuildConsulta(req, cert)
	require.NoError(t, err)

	assert.Equal(t, "PedidoConsultaNFe", doc.Root().Tag)
	assert.Nil(t, doc.FindElement("//Detalhe/AssinaturaCancelamento"))
	assert.NotNil(t, doc.FindElement("//Signature"), "o pedido completo ainda é assinado")
}
