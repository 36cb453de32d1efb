package entity

import "time"

// Tipos de pessoa do tomador.
const (
	PersonTypeJuridica = "J"
	PersonTypeFisica   = "F"
)

// Partner tomador do serviço (contraparte da nota).
type Partner struct {
	ID          string
	RazaoSocial string
	CNPJCPF     string
	PersonType  string // ver constantes PersonType*

	InscricaoMunicipal string
	InscricaoEstadual  string

	// Endereço postal
	Logradouro  string
	Numero      string
	Complemento string
	Bairro      string
	CityCode    string // código IBGE do município do tomador
	UF          string
	CEP         string

	Email string

	CreatedAt time.Time
	UpdatedAt time.Time
}
