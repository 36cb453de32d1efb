package nfse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	domnfse "github.com/fiscalbr/nfse-gateway/internal/domain/nfse"
)

// ── Estruturas do retorno da prefeitura ───────────────────────────────────────
//
// O mesmo envelope serve aos quatro serviços: um Cabecalho com o sucesso do
// lote, alertas e erros por item, e as chaves emitidas no caso do envio. Nos
// retornos de cancelamento e consulta os itens vêm referenciados pela chave da
// NFS-e em vez da chave do RPS.

type retorno struct {
	Cabecalho retornoCabecalho     `xml:"Cabecalho"`
	Alertas   []retornoAviso       `xml:"Alerta"`
	Erros     []retornoAviso       `xml:"Erro"`
	Chaves    []retornoChaveNFeRPS `xml:"ChaveNFeRPS"`
}

type retornoCabecalho struct {
	Sucesso bool `xml:"Sucesso"`
}

type retornoAviso struct {
	Codigo    string          `xml:"Codigo"`
	Descricao string          `xml:"Descricao"`
	ChaveRPS  retornoChaveRPS `xml:"ChaveRPS"`
	ChaveNFe  retornoChaveNFe `xml:"ChaveNFe"`
}

type retornoChaveRPS struct {
	SerieRPS  string `xml:"SerieRPS"`
	NumeroRPS int64  `xml:"NumeroRPS"`
}

type retornoChaveNFe struct {
	NumeroNFe         string `xml:"NumeroNFe"`
	CodigoVerificacao string `xml:"CodigoVerificacao"`
}

type retornoChaveNFeRPS struct {
	ChaveNFe retornoChaveNFe `xml:"ChaveNFe"`
	ChaveRPS retornoChaveRPS `xml:"ChaveRPS"`
}

// ParseRetorno decodifica o XML de retorno para o resultado de transmissão.
// keyByNumero mapeia número de NFS-e para a chave do RPS de origem; é usado
// nos retornos de cancelamento e consulta, cujos itens não trazem ChaveRPS.
// Pode ser nil no retorno de envio.
func ParseRetorno(data []byte, keyByNumero map[string]domnfse.RPSKey) (*domnfse.TransmissionResult, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader

	var ret retorno
	if err := dec.Decode(&ret); err != nil {
		return nil, fmt.Errorf("decodificando retorno da prefeitura: %w", err)
	}

	result := &domnfse.TransmissionResult{
		Success:  ret.Cabecalho.Sucesso,
		Warnings: map[domnfse.RPSKey][]domnfse.Alert{},
		Errors:   map[domnfse.RPSKey][]domnfse.Alert{},
	}

	for _, chave := range ret.Chaves {
		result.Issued = append(result.Issued, domnfse.Issued{
			Key:               domnfse.RPSKey{Serie: chave.ChaveRPS.SerieRPS, Numero: chave.ChaveRPS.NumeroRPS},
			Numero:            chave.ChaveNFe.NumeroNFe,
			CodigoVerificacao: chave.ChaveNFe.CodigoVerificacao,
		})
	}
	for _, aviso := range ret.Alertas {
		key := avisoKey(aviso, keyByNumero)
		result.Warnings[key] = append(result.Warnings[key], domnfse.Alert{Code: aviso.Codigo, Message: aviso.Descricao})
	}
	for _, erro := range ret.Erros {
		key := avisoKey(erro, keyByNumero)
		result.Errors[key] = append(result.Errors[key], domnfse.Alert{Code: erro.Codigo, Message: erro.Descricao})
	}

	return result, nil
}

func avisoKey(aviso retornoAviso, keyByNumero map[string]domnfse.RPSKey) domnfse.RPSKey {
	if aviso.ChaveRPS.SerieRPS != "" || aviso.ChaveRPS.NumeroRPS != 0 {
		return domnfse.RPSKey{Serie: aviso.ChaveRPS.SerieRPS, Numero: aviso.ChaveRPS.NumeroRPS}
	}
	if key, ok := keyByNumero[aviso.ChaveNFe.NumeroNFe]; ok {
		return key
	}
	return domnfse.RPSKey{}
}

// charsetReader aceita as codificações que a prefeitura de fato usa nas
// respostas (o declarado nem sempre é UTF-8).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8":
		return input, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("charset não suportado no retorno: %s", charset)
	}
}
