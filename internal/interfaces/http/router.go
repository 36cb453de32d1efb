package http

import (
	"github.com/gofiber/fiber/v2"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	Operator  NFSeOperator
	Espelho   EspelhoService
	JWTSecret string
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rotas protegidas (requerem Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	nfse := protected.Group("/nfse")
	handler := NewNFSeHandler(deps.Operator, deps.Espelho)
	nfse.Post("/enviar", handler.Enviar)
	nfse.Post("/enviar-teste", handler.EnviarTeste)
	nfse.Post("/cancelar", handler.Cancelar)
	nfse.Post("/consultar", handler.Consultar)
	nfse.Get("/:id/espelho", handler.Espelho)
}
