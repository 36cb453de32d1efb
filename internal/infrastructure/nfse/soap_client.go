package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"

	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain"
	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	"github.com/fiscalbr/nfse-gateway/pkg/logger"
)

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapActionBase = "http://www.prefeitura.sp.gov.br/nfe/ws/"

	actionEnvioLote      = "envioLoteRPS"
	actionTesteEnvioLote = "testeEnvioLoteRPS"
	actionCancelamento   = "cancelamentoNFe"
	actionConsulta       = "consultaNFe"
)

var _ manage.Transmitter = (*SOAPClient)(nil)

// ClientConfig parâmetros de rede do cliente.
type ClientConfig struct {
	VersaoSchema    string
	RequestTimeout  time.Duration
	LivenessTimeout time.Duration
}

// SOAPClient fala o protocolo SOAP da prefeitura com certificado de cliente.
// Cada chamada monta um http.Client efêmero com o certificado da operação; o
// material não sobrevive à chamada.
type SOAPClient struct {
	cfg     ClientConfig
	builder *XMLBuilder
	log     *logger.Logger
}

// NewSOAPClient constrói o cliente com o montador de pedidos.
func NewSOAPClient(cfg ClientConfig, builder *XMLBuilder, log *logger.Logger) *SOAPClient {
	return &SOAPClient{cfg: cfg, builder: builder, log: log}
}

// CheckLive sonda a disponibilidade do servidor da prefeitura com um GET
// simples e timeout curto. Qualquer resposta que não seja 200, ou falha de
// transporte, conta como fora do ar.
func (c *SOAPClient) CheckLive(ctx context.Context, host string) error {
	client := &http.Client{Timeout: c.cfg.LivenessTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, domnfse.NormalizeHost(host), nil)
	if err != nil {
		return fmt.Errorf("montando sondagem: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sondando %s: %w", host, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sondagem de %s respondeu HTTP %d", host, resp.StatusCode)
	}
	return nil
}

// Submit transmite o lote assinado. mode escolhe entre validação e envio real.
func (c *SOAPClient) Submit(ctx context.Context, endpoint domnfse.Endpoint, batch *domnfse.Batch, cert *domnfse.ScopedCertificate, mode domnfse.Mode) (*domnfse.TransmissionResult, error) {
	doc, err := c.builder.BuildLote(batch, cert, mode)
	if err != nil {
		return nil, err
	}

	action := actionEnvioLote
	if mode == domnfse.ModeValidate {
		action = actionTesteEnvioLote
	}
	retornoXML, err := c.call(ctx, endpoint, action, doc, cert)
	if err != nil {
		return nil, err
	}
	return ParseRetorno(retornoXML, nil)
}

// Cancel pede o cancelamento das NFS-e do pedido.
func (c *SOAPClient) Cancel(ctx context.Context, endpoint domnfse.Endpoint, req *domnfse.CancelRequest, cert *domnfse.ScopedCertificate) (*domnfse.TransmissionResult, error) {
	doc, err := c.builder.BuildCancelamento(req, cert)
	if err != nil {
		return nil, err
	}
	retornoXML, err := c.call(ctx, endpoint, actionCancelamento, doc, cert)
	if err != nil {
		return nil, err
	}
	return ParseRetorno(retornoXML, keyByNumero(req.Items))
}

// Query consulta a situação das NFS-e do pedido.
func (c *SOAPClient) Query(ctx context.Context, endpoint domnfse.Endpoint, req *domnfse.QueryRequest, cert *domnfse.ScopedCertificate) (*domnfse.TransmissionResult, error) {
	doc, err := c.builder.BuildConsulta(req, cert)
	if err != nil {
		return nil, err
	}
	retornoXML, err := c.call(ctx, endpoint, actionConsulta, doc, cert)
	if err != nil {
		return nil, err
	}
	return ParseRetorno(retornoXML, keyByNumero(req.Items))
}

// call embrulha o pedido assinado num envelope SOAP, envia com TLS mútuo e
// extrai o XML de retorno do envelope de resposta. Falha de transporte ou
// status não-200 vira *domain.CommunicationError.
func (c *SOAPClient) call(ctx context.Context, endpoint domnfse.Endpoint, action string, doc *etree.Document, cert *domnfse.ScopedCertificate) ([]byte, error) {
	mensagem, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("serializando pedido: %w", err)
	}

	envelope, err := soapEnvelope(action, c.cfg.VersaoSchema, mensagem)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL(), bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("montando chamada %s: %w", action, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapActionBase+action)

	client := c.httpClientFor(cert)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.CommunicationError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.CommunicationError{StatusCode: resp.StatusCode, Reason: err.Error()}
	}
	c.log.Debug().
		Str("action", action).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("chamada à prefeitura")

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.CommunicationError{StatusCode: resp.StatusCode, Reason: summarize(body)}
	}
	return extractRetorno(body)
}

func (c *SOAPClient) httpClientFor(cert *domnfse.ScopedCertificate) *http.Client {
	return &http.Client{
		Timeout: c.cfg.RequestTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert.TLS},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}
}

// soapEnvelope monta o envelope do serviço. O pedido assinado viaja escapado
// dentro de MensagemXML.
func soapEnvelope(action, versaoSchema, mensagem string) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", soapNS)
	body := env.CreateElement("soap:Body")

	request := body.CreateElement(requestElement(action))
	request.CreateAttr("xmlns", "http://www.prefeitura.sp.gov.br/nfe")
	request.CreateElement("VersaoSchema").SetText(versaoSchema)
	request.CreateElement("MensagemXML").SetText(mensagem)

	return doc.WriteToBytes()
}

func requestElement(action string) string {
	switch action {
	case actionEnvioLote:
		return "EnvioLoteRPSRequest"
	case actionTesteEnvioLote:
		return "TesteEnvioLoteRPSRequest"
	case actionCancelamento:
		return "CancelamentoNFeRequest"
	default:
		return "ConsultaNFeRequest"
	}
}

// extractRetorno abre o envelope SOAP de resposta e devolve o conteúdo de
// RetornoXML (o XML de retorno escapado, frequentemente em ISO-8859-1).
func extractRetorno(body []byte) ([]byte, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, &domain.CommunicationError{StatusCode: http.StatusOK, Reason: fmt.Sprintf("resposta não é SOAP válido: %v", err)}
	}

	el := doc.FindElement("//RetornoXML")
	if el == nil {
		return nil, &domain.CommunicationError{StatusCode: http.StatusOK, Reason: "resposta SOAP sem RetornoXML"}
	}
	return []byte(el.Text()), nil
}

func keyByNumero(items []domnfse.CancelItem) map[string]domnfse.RPSKey {
	m := make(map[string]domnfse.RPSKey, len(items))
	for _, item := range items {
		m[item.NumeroNFSe] = item.Key
	}
	return m
}

// summarize corta o corpo da resposta para caber numa mensagem de erro.
func summarize(body []byte) string {
	const max = 300
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
