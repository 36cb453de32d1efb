package nfse

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/ucarion/c14n"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

// Larguras dos campos da cadeia de assinatura do RPS, na ordem em que entram
// na cadeia. O protocolo assina uma projeção de largura fixa do RPS, não o XML.
const (
	widthInscricaoPrestador = 8
	widthSerieRPS           = 5
	widthNumeroRPS          = 12
	widthValor              = 15
	widthCodigoServico      = 5
	widthDocumentoTomador   = 14
)

// Indicadores do documento do tomador na cadeia de assinatura.
const (
	indicadorCPF          = "1"
	indicadorCNPJ         = "2"
	indicadorNaoInformado = "3"
)

const xmldsigNS = "http://www.w3.org/2000/09/xmldsig#"

// Signer produz as duas assinaturas que o protocolo exige: a cadeia RSA-SHA1
// de cada RPS e a assinatura XML-DSig envelopada do pedido completo.
type Signer struct{}

// NewSigner constrói o assinador.
func NewSigner() *Signer {
	return &Signer{}
}

// RPSSignature monta a cadeia de largura fixa do RPS e a assina com RSA-SHA1.
// Devolve o valor em base64 que vai no elemento Assinatura do RPS.
func (s *Signer) RPSSignature(rps *domnfse.RPS, inscricaoPrestador string, cert *domnfse.ScopedCertificate) (string, error) {
	key, err := rsaKey(cert)
	if err != nil {
		return "", err
	}

	chain := rpsSignatureChain(rps, inscricaoPrestador)
	digest := sha1.Sum([]byte(chain))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("assinando cadeia do RPS %s: %w", rps.Key, err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// rpsSignatureChain concatena os campos do RPS em largura fixa, na ordem do
// protocolo: inscrição do prestador, série, número, data de emissão, regime,
// status, retenção, valores em centavos, código do serviço e o documento do
// tomador precedido do indicador de tipo.
func rpsSignatureChain(rps *domnfse.RPS, inscricaoPrestador string) string {
	var b strings.Builder
	b.WriteString(fixedDigits(inscricaoPrestador, widthInscricaoPrestador))
	b.WriteString(fixedText(strings.ToUpper(rps.Key.Serie), widthSerieRPS))
	b.WriteString(fixedDigits(fmt.Sprintf("%d", rps.Key.Numero), widthNumeroRPS))
	b.WriteString(rps.DataEmissao.Format("20060102"))
	b.WriteString(rps.Tributacao)
	b.WriteString(rps.Status)
	b.WriteString(boolSN(rps.ISSRetido))
	b.WriteString(fixedDigits(centavos(rps.ValorServicos), widthValor))
	b.WriteString(fixedDigits(centavos(rps.ValorDeducoes), widthValor))
	b.WriteString(fixedDigits(domnfse.OnlyDigits(rps.CodigoServico), widthCodigoServico))
	b.WriteString(documentoIndicador(rps.Tomador))
	b.WriteString(fixedDigits(rps.Tomador.CNPJCPF, widthDocumentoTomador))
	return b.String()
}

func documentoIndicador(t domnfse.Tomador) string {
	if t.CNPJCPF == "" {
		return indicadorNaoInformado
	}
	if t.TipoPessoa == entity.PersonTypeFisica {
		return indicadorCPF
	}
	return indicadorCNPJ
}

// CancellationSignature assina a cadeia de cancelamento de uma NFS-e emitida:
// inscrição do prestador e número da NFS-e em largura fixa, RSA-SHA1 em base64.
func (s *Signer) CancellationSignature(inscricaoPrestador, numeroNFSe string, cert *domnfse.ScopedCertificate) (string, error) {
	key, err := rsaKey(cert)
	if err != nil {
		return "", err
	}

	chain := fixedDigits(inscricaoPrestador, widthInscricaoPrestador) + fixedDigits(numeroNFSe, widthNumeroRPS)
	digest := sha1.Sum([]byte(chain))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, digest[:])
	if err != nil {
		return "", fmt.Errorf("assinando cadeia de cancelamento da NFS-e %s: %w", numeroNFSe, err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// SignXML aplica a assinatura XML-DSig envelopada ao documento do pedido:
// digest SHA-1 do documento canonicalizado, SignedInfo canonicalizado e
// assinado com a chave do certificado, e o certificado embutido em KeyInfo.
func (s *Signer) SignXML(doc *etree.Document, cert *domnfse.ScopedCertificate) error {
	key, err := rsaKey(cert)
	if err != nil {
		return err
	}
	if len(cert.TLS.Certificate) == 0 {
		return fmt.Errorf("certificado sem cadeia X.509")
	}

	plain, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serializando pedido para assinatura: %w", err)
	}
	canonical, err := canonicalize(plain)
	if err != nil {
		return fmt.Errorf("canonicalizando pedido: %w", err)
	}
	docDigest := sha1.Sum(canonical)

	signedInfo := buildSignedInfo(base64.StdEncoding.EncodeToString(docDigest[:]))
	siDoc := etree.NewDocument()
	siDoc.SetRoot(signedInfo.Copy())
	siPlain, err := siDoc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("serializando SignedInfo: %w", err)
	}
	siCanonical, err := canonicalize(siPlain)
	if err != nil {
		return fmt.Errorf("canonicalizando SignedInfo: %w", err)
	}
	siDigest := sha1.Sum(siCanonical)

	sigValue, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA1, siDigest[:])
	if err != nil {
		return fmt.Errorf("assinando SignedInfo: %w", err)
	}

	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", xmldsigNS)
	signature.AddChild(signedInfo)
	signature.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sigValue))
	keyInfo := signature.CreateElement("KeyInfo")
	x509Data := keyInfo.CreateElement("X509Data")
	x509Data.CreateElement("X509Certificate").SetText(base64.StdEncoding.EncodeToString(cert.TLS.Certificate[0]))

	doc.Root().AddChild(signature)
	return nil
}

func buildSignedInfo(digestValue string) *etree.Element {
	signedInfo := etree.NewElement("SignedInfo")
	signedInfo.CreateAttr("xmlns", xmldsigNS)

	c14nMethod := signedInfo.CreateElement("CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", "http://www.w3.org/TR/2001/REC-xml-c14n-20010315")
	sigMethod := signedInfo.CreateElement("SignatureMethod")
	sigMethod.CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#rsa-sha1")

	ref := signedInfo.CreateElement("Reference")
	ref.CreateAttr("URI", "")
	transforms := ref.CreateElement("Transforms")
	t1 := transforms.CreateElement("Transform")
	t1.CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#enveloped-signature")
	t2 := transforms.CreateElement("Transform")
	t2.CreateAttr("Algorithm", "http://www.w3.org/TR/2001/REC-xml-c14n-20010315")
	digestMethod := ref.CreateElement("DigestMethod")
	digestMethod.CreateAttr("Algorithm", "http://www.w3.org/2000/09/xmldsig#sha1")
	ref.CreateElement("DigestValue").SetText(digestValue)

	return signedInfo
}

func canonicalize(raw []byte) ([]byte, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	return c14n.Canonicalize(decoder)
}

func rsaKey(cert *domnfse.ScopedCertificate) (*rsa.PrivateKey, error) {
	key, ok := cert.TLS.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("certificado sem chave RSA")
	}
	return key, nil
}

// fixedDigits mantém só dígitos, trunca pela direita e preenche com zeros à
// esquerda até a largura.
func fixedDigits(s string, width int) string {
	s = domnfse.OnlyDigits(s)
	if len(s) > width {
		s = s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// fixedText preenche com espaços à direita até a largura (truncando se maior).
func fixedText(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func boolSN(v bool) string {
	if v {
		return "S"
	}
	return "N"
}

// centavos converte o valor decimal para a representação inteira em centavos.
func centavos(d decimal.Decimal) string {
	return domnfse.OnlyDigits(d.StringFixed(2))
}
