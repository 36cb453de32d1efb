package nfse

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

const nfeNS = "http://www.prefeitura.sp.gov.br/nfe"

// Datas vão no fio sem hora.
const wireDateLayout = "2006-01-02"

// XMLBuilder monta os pedidos XML do protocolo, já assinados: cada RPS carrega
// a sua cadeia de assinatura e o pedido completo recebe a assinatura XML-DSig
// envelopada.
type XMLBuilder struct {
	signer *Signer
}

// NewXMLBuilder constrói o montador com o assinador.
func NewXMLBuilder(signer *Signer) *XMLBuilder {
	return &XMLBuilder{signer: signer}
}

// BuildLote monta o pedido de envio do lote. mode escolhe o elemento raiz:
// PedidoEnvioLoteRPS transmite, TesteEnvioLoteRPS só valida.
func (b *XMLBuilder) BuildLote(batch *domnfse.Batch, cert *domnfse.ScopedCertificate, mode domnfse.Mode) (*etree.Document, error) {
	rootName := "PedidoEnvioLoteRPS"
	if mode == domnfse.ModeValidate {
		rootName = "TesteEnvioLoteRPS"
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement(rootName)
	root.CreateAttr("xmlns", nfeNS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("xmlns", "")
	cab.CreateAttr("Versao", batch.Versao)
	remetente := cab.CreateElement("CPFCNPJRemetente")
	remetente.CreateElement("CNPJ").SetText(batch.CNPJRemetente)
	cab.CreateElement("transacao").SetText(boolText(batch.Transacao))
	cab.CreateElement("dtInicio").SetText(batch.DtInicio.Format(wireDateLayout))
	cab.CreateElement("dtFim").SetText(batch.DtFim.Format(wireDateLayout))
	cab.CreateElement("QtdRPS").SetText(fmt.Sprintf("%d", batch.QtdRPS))
	cab.CreateElement("ValorTotalServicos").SetText(batch.ValorTotalServicos.StringFixed(2))
	cab.CreateElement("ValorTotalDeducoes").SetText(batch.ValorTotalDeducoes.StringFixed(2))

	for i := range batch.RPS {
		rpsEl, err := b.buildRPS(&batch.RPS[i], batch.InscricaoMunicipal, cert)
		if err != nil {
			return nil, err
		}
		root.AddChild(rpsEl)
	}

	if err := b.signer.SignXML(doc, cert); err != nil {
		return nil, err
	}
	return doc, nil
}

func (b *XMLBuilder) buildRPS(rps *domnfse.RPS, inscricaoPrestador string, cert *domnfse.ScopedCertificate) (*etree.Element, error) {
	assinatura, err := b.signer.RPSSignature(rps, inscricaoPrestador, cert)
	if err != nil {
		return nil, err
	}

	el := etree.NewElement("RPS")
	el.CreateAttr("xmlns", "")
	el.CreateElement("Assinatura").SetText(assinatura)

	chave := el.CreateElement("ChaveRPS")
	chave.CreateElement("InscricaoPrestador").SetText(inscricaoPrestador)
	chave.CreateElement("SerieRPS").SetText(rps.Key.Serie)
	chave.CreateElement("NumeroRPS").SetText(fmt.Sprintf("%d", rps.Key.Numero))

	el.CreateElement("TipoRPS").SetText("RPS")
	el.CreateElement("DataEmissao").SetText(rps.DataEmissao.Format(wireDateLayout))
	el.CreateElement("StatusRPS").SetText(rps.Status)
	el.CreateElement("TributacaoRPS").SetText(rps.Tributacao)

	el.CreateElement("ValorServicos").SetText(rps.ValorServicos.StringFixed(2))
	el.CreateElement("ValorDeducoes").SetText(rps.ValorDeducoes.StringFixed(2))
	el.CreateElement("ValorPIS").SetText(rps.ValorPIS.StringFixed(2))
	el.CreateElement("ValorCOFINS").SetText(rps.ValorCOFINS.StringFixed(2))
	el.CreateElement("ValorINSS").SetText(rps.ValorINSS.StringFixed(2))
	el.CreateElement("ValorIR").SetText(rps.ValorIR.StringFixed(2))
	el.CreateElement("ValorCSLL").SetText(rps.ValorCSLL.StringFixed(2))

	el.CreateElement("CodigoServico").SetText(rps.CodigoServico)
	el.CreateElement("AliquotaServicos").SetText(rps.Aliquota.StringFixed(2))
	el.CreateElement("ISSRetido").SetText(boolText(rps.ISSRetido))

	tomadorDoc := el.CreateElement("CPFCNPJTomador")
	if rps.Tomador.TipoPessoa == entity.PersonTypeFisica {
		tomadorDoc.CreateElement("CPF").SetText(rps.Tomador.CNPJCPF)
	} else {
		tomadorDoc.CreateElement("CNPJ").SetText(rps.Tomador.CNPJCPF)
	}
	if rps.Tomador.InscricaoMunicipal != "" {
		el.CreateElement("InscricaoMunicipalTomador").SetText(rps.Tomador.InscricaoMunicipal)
	}
	if rps.Tomador.InscricaoEstadual != "" {
		el.CreateElement("InscricaoEstadualTomador").SetText(rps.Tomador.InscricaoEstadual)
	}
	el.CreateElement("RazaoSocialTomador").SetText(rps.Tomador.RazaoSocial)

	endereco := el.CreateElement("EnderecoTomador")
	endereco.CreateElement("Logradouro").SetText(rps.Tomador.Logradouro)
	endereco.CreateElement("NumeroEndereco").SetText(rps.Tomador.Numero)
	if rps.Tomador.Complemento != "" {
		endereco.CreateElement("ComplementoEndereco").SetText(rps.Tomador.Complemento)
	}
	endereco.CreateElement("Bairro").SetText(rps.Tomador.Bairro)
	endereco.CreateElement("Cidade").SetText(rps.Tomador.CityCode)
	endereco.CreateElement("UF").SetText(rps.Tomador.UF)
	endereco.CreateElement("CEP").SetText(rps.Tomador.CEP)

	if rps.Tomador.Email != "" {
		el.CreateElement("EmailTomador").SetText(rps.Tomador.Email)
	}
	el.CreateElement("Discriminacao").SetText(rps.Discriminacao)

	return el, nil
}

// BuildCancelamento monta o pedido de cancelamento: um Detalhe por NFS-e, cada
// um com a sua cadeia de assinatura de cancelamento.
func (b *XMLBuilder) BuildCancelamento(req *domnfse.CancelRequest, cert *domnfse.ScopedCertificate) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("PedidoCancelamentoNFe")
	root.CreateAttr("xmlns", nfeNS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("xmlns", "")
	cab.CreateAttr("Versao", "1")
	remetente := cab.CreateElement("CPFCNPJRemetente")
	remetente.CreateElement("CNPJ").SetText(req.CNPJRemetente)
	cab.CreateElement("transacao").SetText("true")

	for _, item := range req.Items {
		assinatura, err := b.signer.CancellationSignature(req.InscricaoMunicipal, item.NumeroNFSe, cert)
		if err != nil {
			return nil, err
		}
		detalhe := root.CreateElement("Detalhe")
		detalhe.CreateAttr("xmlns", "")
		chave := detalhe.CreateElement("ChaveNFe")
		chave.CreateElement("InscricaoPrestador").SetText(req.InscricaoMunicipal)
		chave.CreateElement("NumeroNFe").SetText(item.NumeroNFSe)
		chave.CreateElement("CodigoVerificacao").SetText(item.CodigoVerificacao)
		detalhe.CreateElement("AssinaturaCancelamento").SetText(assinatura)
	}

	if err := b.signer.SignXML(doc, cert); err != nil {
		return nil, err
	}
	return doc, nil
}

// BuildConsulta monta o pedido de consulta de situação das NFS-e.
func (b *XMLBuilder) BuildConsulta(req *domnfse.QueryRequest, cert *domnfse.ScopedCertificate) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("PedidoConsultaNFe")
	root.CreateAttr("xmlns", nfeNS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("xmlns", "")
	cab.CreateAttr("Versao", "1")
	remetente := cab.CreateElement("CPFCNPJRemetente")
	remetente.CreateElement("CNPJ").SetText(req.CNPJRemetente)

	for _, item := range req.Items {
		detalhe := root.CreateElement("Detalhe")
		detalhe.CreateAttr("xmlns", "")
		chave := detalhe.CreateElement("ChaveNFe")
		chave.CreateElement("InscricaoPrestador").SetText(req.InscricaoMunicipal)
		chave.CreateElement("NumeroNFe").SetText(item.NumeroNFSe)
		chave.CreateElement("CodigoVerificacao").SetText(item.CodigoVerificacao)
	}

	if err := b.signer.SignXML(doc, cert); err != nil {
		return nil, err
	}
	return doc, nil
}

func boolText(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
