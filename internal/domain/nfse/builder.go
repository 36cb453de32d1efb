package nfse

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fiscalbr/nfse-gateway/internal/domain"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// BuildInput uma nota elegível com a empresa e o tomador já resolvidos pelo
// diretório externo.
type BuildInput struct {
	Invoice *entity.Invoice
	Company *entity.Company
	Partner *entity.Partner
}

// BuildBatch monta o lote de RPS a partir das notas elegíveis. Função pura dos
// registros de nota/empresa/tomador: mesma entrada produz lote idêntico.
//
// referenceCity é o código IBGE do município de referência: a inscrição
// municipal do tomador só vai para o fio quando empresa e tomador estão ambos
// nesse município; fora dele o campo é sempre limpo, mesmo que o cadastro
// traga valor. versao é a versão do layout gravada no cabeçalho.
func BuildBatch(inputs []BuildInput, referenceCity, versao string) (*Batch, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrEmptySelection
	}

	company := inputs[0].Company
	cnpj := OnlyDigits(company.CNPJ)
	if cnpj == "" {
		// Verificado uma vez por lote, não por RPS
		return nil, fmt.Errorf("empresa %s: %w", company.Name, domain.ErrMissingCompanyCNPJ)
	}

	batch := &Batch{
		CNPJRemetente:      cnpj,
		InscricaoMunicipal: OnlyDigits(company.InscricaoMunicipal),
		Transacao:          true,
		Versao:             versao,
		ValorTotalServicos: decimal.Zero,
		ValorTotalDeducoes: decimal.Zero,
	}

	var dates []time.Time
	for _, in := range inputs {
		if in.Company.ID != company.ID {
			return nil, fmt.Errorf("lote com mais de uma empresa emissora (%s e %s)", company.Name, in.Company.Name)
		}
		rps, err := buildRPS(in, referenceCity)
		if err != nil {
			return nil, err
		}
		batch.RPS = append(batch.RPS, *rps)
		batch.ValorTotalServicos = batch.ValorTotalServicos.Add(rps.ValorServicos)
		batch.ValorTotalDeducoes = batch.ValorTotalDeducoes.Add(rps.ValorDeducoes)
		dates = append(dates, rps.DataEmissao)
	}

	batch.QtdRPS = len(batch.RPS)
	batch.DtInicio, batch.DtFim = dateRange(dates)
	return batch, nil
}

func buildRPS(in BuildInput, referenceCity string) (*RPS, error) {
	inv, company, partner := in.Invoice, in.Company, in.Partner

	if OnlyDigits(partner.CNPJCPF) == "" {
		return nil, fmt.Errorf("nota %s (tomador %s): %w", inv.Number, partner.RazaoSocial, domain.ErrMissingTaxID)
	}

	// Deduções são guardadas como magnitude não negativa, ainda que o valor
	// de origem seja negativo.
	deducoes := decimal.Zero
	if inv.AmountTax.IsNegative() {
		deducoes = inv.AmountTax.Neg()
	}

	rps := &RPS{
		Key:           RPSKey{Serie: inv.RPSSerie, Numero: inv.RPSNumero},
		Tipo:          TipoRPS,
		DataEmissao:   inv.IssueDate,
		Status:        StatusRPSNormal,
		Tributacao:    taxRegime(inv, company),
		ValorServicos: inv.AmountUntaxed,
		ValorDeducoes: deducoes,
		CodigoServico: inv.ServiceCode,
		Discriminacao: discriminacao(inv),
		InvoiceID:     inv.ID,
	}

	accumulateTaxes(rps, inv.TaxLines)

	inscricao, err := tomadorInscricaoMunicipal(company, partner, referenceCity)
	if err != nil {
		return nil, fmt.Errorf("nota %s (tomador %s): %w", inv.Number, partner.RazaoSocial, err)
	}

	rps.Tomador = Tomador{
		CNPJCPF:            OnlyDigits(partner.CNPJCPF),
		TipoPessoa:         partner.PersonType,
		InscricaoMunicipal: inscricao,
		InscricaoEstadual:  OnlyDigits(partner.InscricaoEstadual),
		RazaoSocial:        partner.RazaoSocial,
		Logradouro:         partner.Logradouro,
		Numero:             partner.Numero,
		Complemento:        partner.Complemento,
		Bairro:             partner.Bairro,
		CityCode:           OnlyDigits(partner.CityCode),
		UF:                 partner.UF,
		CEP:                OnlyDigits(partner.CEP),
		Email:              partner.Email,
	}

	return rps, nil
}

// accumulateTaxes percorre as linhas de imposto e acumula o valor arredondado
// (2 casas) de cada classificação reconhecida. A classificação iss vira também
// a alíquota do serviço; iss_retido acumulado negativo liga o flag de retenção
// na fonte.
func accumulateTaxes(rps *RPS, lines []entity.TaxLine) {
	totals := map[string]decimal.Decimal{}
	for _, line := range lines {
		switch line.Classification {
		case entity.TaxPIS, entity.TaxCOFINS, entity.TaxINSS,
			entity.TaxIR, entity.TaxCSLL, entity.TaxISS, entity.TaxISSRetido:
			totals[line.Classification] = totals[line.Classification].Add(line.Amount.Round(2))
		}
	}

	rps.ValorPIS = totals[entity.TaxPIS]
	rps.ValorCOFINS = totals[entity.TaxCOFINS]
	rps.ValorINSS = totals[entity.TaxINSS]
	rps.ValorIR = totals[entity.TaxIR]
	rps.ValorCSLL = totals[entity.TaxCSLL]
	rps.Aliquota = totals[entity.TaxISS]
	rps.ISSRetido = totals[entity.TaxISSRetido].IsNegative()
}

// discriminacao concatena as descrições das linhas de serviço com "|".
func discriminacao(inv *entity.Invoice) string {
	parts := make([]string, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		parts = append(parts, l.Description)
	}
	return strings.Join(parts, "|")
}

// tomadorInscricaoMunicipal aplica a regra assimétrica: a inscrição municipal
// do tomador é obrigatória apenas quando empresa e tomador estão no município
// de referência; em qualquer outro caso ela é limpa, mesmo que o cadastro
// traga valor.
func tomadorInscricaoMunicipal(company *entity.Company, partner *entity.Partner, referenceCity string) (string, error) {
	if OnlyDigits(company.CityCode) == referenceCity && OnlyDigits(partner.CityCode) == referenceCity {
		inscricao := OnlyDigits(partner.InscricaoMunicipal)
		if inscricao == "" {
			return "", domain.ErrMissingMunicipalReg
		}
		return inscricao, nil
	}
	return "", nil
}

func taxRegime(inv *entity.Invoice, company *entity.Company) string {
	if inv.RegimeTributacao != "" {
		return inv.RegimeTributacao
	}
	return company.RegimeTributacao
}

func dateRange(dates []time.Time) (min, max time.Time) {
	min, max = dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(min) {
			min = d
		}
		if d.After(max) {
			max = d
		}
	}
	return min, max
}
