package nfse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
	infranfse "github.com/fiscalbr/nfse-gateway/internal/infrastructure/nfse"
)

func TestParseRetorno_EnvioComChavesEmitidas(t *testing.T) {
	retorno := `<?xml version="1.0" encoding="UTF-8"?>
<RetornoEnvioLoteRPS xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>true</Sucesso></Cabecalho>
  <ChaveNFeRPS>
    <ChaveNFe><InscricaoPrestador>87143470</InscricaoPrestador><NumeroNFe>9001</NumeroNFe><CodigoVerificacao>AAAA1111</CodigoVerificacao></ChaveNFe>
    <ChaveRPS><InscricaoPrestador>87143470</InscricaoPrestador><SerieRPS>A</SerieRPS><NumeroRPS>1</NumeroRPS></ChaveRPS>
  </ChaveNFeRPS>
  <ChaveNFeRPS>
    <ChaveNFe><InscricaoPrestador>87143470</InscricaoPrestador><NumeroNFe>9002</NumeroNFe><CodigoVerificacao>BBBB2222</CodigoVerificacao></ChaveNFe>
    <ChaveRPS><InscricaoPrestador>87143470</InscricaoPrestador><SerieRPS>A</SerieRPS><NumeroRPS>2</NumeroRPS></ChaveRPS>
  </ChaveNFeRPS>
</RetornoEnvioLoteRPS>`

	res, err := infranfse.ParseRetorno([]byte(retorno), nil)
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Issued, 2)
	assert.Equal(t, domnfse.RPSKey{Serie: "A", Numero: 1}, res.Issued[0].Key)
	assert.Equal(t, "9001", res.Issued[0].Numero)
	assert.Equal(t, "AAAA1111", res.Issued[0].CodigoVerificacao)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Errors)
}

func TestParseRetorno_AlertasEErrosPorChaveRPS(t *testing.T) {
	retorno := `<?xml version="1.0" encoding="UTF-8"?>
<RetornoEnvioLoteRPS xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>false</Sucesso></Cabecalho>
  <Alerta>
    <Codigo>208</Codigo>
    <Descricao>Aliquota de servico divergente</Descricao>
    <ChaveRPS><InscricaoPrestador>87143470</InscricaoPrestador><SerieRPS>A</SerieRPS><NumeroRPS>1</NumeroRPS></ChaveRPS>
  </Alerta>
  <Erro>
    <Codigo>1304</Codigo>
    <Descricao>Codigo de servico invalido</Descricao>
    <ChaveRPS><InscricaoPrestador>87143470</InscricaoPrestador><SerieRPS>A</SerieRPS><NumeroRPS>2</NumeroRPS></ChaveRPS>
  </Erro>
</RetornoEnvioLoteRPS>`

	res, err := infranfse.ParseRetorno([]byte(retorno), nil)
	require.NoError(t, err)

	assert.False(t, res.Success)
	key1 := domnfse.RPSKey{Serie: "A", Numero: 1}
	key2 := domnfse.RPSKey{Serie: "A", Numero: 2}
	require.Len(t, res.Warnings[key1], 1)
	assert.Equal(t, domnfse.CodeAliquotaDivergente, res.Warnings[key1][0].Code)
	require.Len(t, res.Errors[key2], 1)
	assert.Equal(t, "1304", res.Errors[key2][0].Code)
}

// TestParseRetorno_ISO88591 cobre o retorno real da prefeitura, que declara e
// usa ISO-8859-1 nas descrições acentuadas.
func TestParseRetorno_ISO88591(t *testing.T) {
	header := `<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n"
	body := `<RetornoEnvioLoteRPS><Cabecalho Versao="1"><Sucesso>false</Sucesso></Cabecalho>` +
		`<Erro><Codigo>1000</Codigo><Descricao>Al\xedquota inv\xe1lida</Descricao>` +
		`<ChaveRPS><SerieRPS>A</SerieRPS><NumeroRPS>1</NumeroRPS></ChaveRPS></Erro></RetornoEnvioLoteRPS>`
	raw := []byte(header)
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+3 < len(body) && body[i+1] == 'x' {
			b := hexByte(body[i+2], body[i+3])
			raw = append(raw, b)
			i += 3
			continue
		}
		raw = append(raw, body[i])
	}

	res, err := infranfse.ParseRetorno(raw, nil)
	require.NoError(t, err)

	key := domnfse.RPSKey{Serie: "A", Numero: 1}
	require.Len(t, res.Errors[key], 1)
	assert.Equal(t, "Alíquota inválida", res.Errors[key][0].Message,
		"bytes ISO-8859-1 devem virar UTF-8 na decodificação")
}

func hexByte(hi, lo byte) byte {
	digit := func(c byte) byte {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		default:
			return c - 'a' + 10
		}
	}
	return digit(hi)<<4 | digit(lo)
}

// TestParseRetorno_CancelamentoMapeiaPelaChaveNFe cobre o retorno de
// cancelamento/consulta, cujos itens referenciam a NFS-e em vez do RPS.
func TestParseRetorno_CancelamentoMapeiaPelaChaveNFe(t *testing.T) {
	retorno := `<?xml version="1.0" encoding="UTF-8"?>
<RetornoCancelamentoNFe xmlns="http://www.prefeitura.sp.gov.br/nfe">
  <Cabecalho Versao="1"><Sucesso>false</Sucesso></Cabecalho>
  <Erro>
    <Codigo>219</Codigo>
    <Descricao>NFS-e ja cancelada</Descricao>
    <ChaveNFe><InscricaoPrestador>87143470</InscricaoPrestador><NumeroNFe>9001</NumeroNFe></ChaveNFe>
  </Erro>
</RetornoCancelamentoNFe>`

	keyByNumero := map[string]domnfse.RPSKey{
		"9001": {Serie: "A", Numero: 1},
	}
	res, err := infranfse.ParseRetorno([]byte(retorno), keyByNumero)
	require.NoError(t, err)

	key := domnfse.RPSKey{Serie: "A", Numero: 1}
	require.Len(t, res.Errors[key], 1, "o item deve ser mapeado de volta ao RPS pelo número da NFS-e")
	assert.Equal(t, domnfse.CodeNFSeCancelada, res.Errors[key][0].Code)
}

func TestParseRetorno_XMLInvalido(t *testing.T) {
	_, err := infranfse.ParseRetorno([]byte("<nao-fecha"), nil)
	assert.Error(t, err)
}
