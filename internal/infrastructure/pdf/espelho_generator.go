// Package pdf implementa a geração do espelho da NFS-e: a representação
// visual da nota transmitida, sem valor fiscal.
//
// Layout da página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Prestador + CNPJ  │  N° NFS-e + Código Verificação │
//	│  ───────────────────────────────────────────────────────── │
//	│  PRESTADOR: Inscrição Municipal / Município                 │
//	│  TOMADOR: Razão Social + CNPJ/CPF + Endereço                │
//	│  ───────────────────────────────────────────────────────── │
//	│  DISCRIMINAÇÃO DOS SERVIÇOS                                 │
//	│  ───────────────────────────────────────────────────────── │
//	│  VALORES: Serviços / Deduções / Total                       │
//	│  RODAPÉ: aviso de espelho sem valor fiscal                  │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	"github.com/fiscalbr/nfse-gateway/internal/domain/entity"
)

// ── Paleta de cores ───────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 90, Blue: 60}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ manage.EspelhoGenerator = (*EspelhoGenerator)(nil)

// EspelhoGenerator implementa manage.EspelhoGenerator usando Maroto v2.
type EspelhoGenerator struct{}

// NewEspelhoGenerator constrói o gerador.
func NewEspelhoGenerator() *EspelhoGenerator { return &EspelhoGenerator{} }

// Generate gera o PDF do espelho e devolve os bytes.
func (g *EspelhoGenerator) Generate(inv *entity.Invoice, company *entity.Company, partner *entity.Partner) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Espelho NFS-e "+inv.NFSeNumero, true).
		WithAuthor(company.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(prestadorRow(company))
	m.AddRows(tomadorRow(partner))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(discriminacaoRows(inv)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(valoresRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(rodapeRow())

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: gerar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Seções ────────────────────────────────────────────────────────────────────

// headerRow: prestador + CNPJ (esq) e número + código de verificação (dir).
func headerRow(inv *entity.Invoice, company *entity.Company) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(company.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+company.CNPJ, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("NOTA FISCAL DE SERVIÇOS ELETRÔNICA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("NFS-e Nº "+inv.NFSeNumero, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Verificação: "+inv.NFSeCodigoVerificacao, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// prestadorRow: dados do prestador.
func prestadorRow(company *entity.Company) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("PRESTADOR DE SERVIÇOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Inscrição Municipal: %s   |   Município: %s",
				nonEmpty(company.InscricaoMunicipal, "—"),
				nonEmpty(company.CityCode, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// tomadorRow: dados do tomador.
func tomadorRow(partner *entity.Partner) core.Row {
	endereco := strings.TrimSpace(fmt.Sprintf("%s, %s %s - %s - %s/%s",
		partner.Logradouro, partner.Numero, partner.Complemento,
		partner.Bairro, partner.CityCode, partner.UF))

	return row.New(16).Add(
		col.New(12).Add(
			text.New("TOMADOR DE SERVIÇOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(partner.RazaoSocial, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("CNPJ/CPF: %s   |   %s   |   CEP: %s",
				partner.CNPJCPF,
				endereco,
				nonEmpty(partner.CEP, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// discriminacaoRows: título + uma linha por serviço da nota.
func discriminacaoRows(inv *entity.Invoice) []core.Row {
	rows := []core.Row{
		row.New(8).Add(
			col.New(12).Add(text.New("DISCRIMINAÇÃO DOS SERVIÇOS", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2,
			})),
		),
	}
	for _, l := range inv.Lines {
		rows = append(rows, row.New(6).Add(
			col.New(12).Add(text.New(l.Description, props.Text{
				Size: 8, Top: 1, Left: 2,
			})),
		))
	}
	rows = append(rows, row.New(7).Add(
		col.New(12).Add(text.New(
			fmt.Sprintf("Código do serviço: %s   |   RPS %s nº %d emitido em %s",
				inv.ServiceCode, inv.RPSSerie, inv.RPSNumero, inv.IssueDate.Format("02/01/2006")),
			props.Text{Size: 8, Top: 2, Color: colorGray},
		)),
	))
	return rows
}

// valoresRow: bloco de valores alinhado à direita.
func valoresRow(inv *entity.Invoice) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top,
		})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	totalLabel := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2, Top: top,
		})
	}
	totalValue := func(s string, top float64) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1, Top: top,
		})
	}

	total := inv.AmountUntaxed.Add(inv.AmountTax)
	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Valor dos serviços:", 2),
			label("Impostos/deduções:", 9),
			totalLabel("VALOR DA NOTA:", 17),
		),
		col.New(3).Add(
			value("R$ "+inv.AmountUntaxed.StringFixed(2), 2),
			value("R$ "+inv.AmountTax.StringFixed(2), 9),
			totalValue("R$ "+total.StringFixed(2), 17),
		),
		col.New(3),
	)
}

// rodapeRow: aviso legal do espelho.
func rodapeRow() core.Row {
	return row.New(10).Add(
		col.New(12).Add(
			text.New("Este documento é um espelho da NFS-e, sem valor fiscal. A validade da nota pode ser verificada no portal da prefeitura com o número e o código de verificação.",
				props.Text{Size: 7, Color: colorGray, Top: 2, Align: align.Center}),
		),
	)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
