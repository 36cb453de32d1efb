package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fiscalbr/nfse-gateway/internal/application/manage"
	infranfse "github.com/fiscalbr/nfse-gateway/internal/infrastructure/nfse"
	infrapdf "github.com/fiscalbr/nfse-gateway/internal/infrastructure/pdf"
	"github.com/fiscalbr/nfse-gateway/internal/infrastructure/postgres"
	httpRouter "github.com/fiscalbr/nfse-gateway/internal/interfaces/http"
	"github.com/fiscalbr/nfse-gateway/pkg/config"
	"github.com/fiscalbr/nfse-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	partnerRepo := postgres.NewPartnerRepository(pool)
	operationRepo := postgres.NewOperationRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Canal com a prefeitura: pedidos assinados (cadeia por RPS + XML-DSig)
	// transmitidos via SOAP com certificado de cliente.
	signer := infranfse.NewSigner()
	xmlBuilder := infranfse.NewXMLBuilder(signer)
	soapClient := infranfse.NewSOAPClient(infranfse.ClientConfig{
		VersaoSchema:    cfg.NFSe.VersaoSchema,
		RequestTimeout:  cfg.NFSe.RequestTimeout,
		LivenessTimeout: cfg.NFSe.LivenessTimeout,
	}, xmlBuilder, log)
	provisioner := infranfse.NewProvisioner()

	manageUC := manage.NewUseCase(
		invoiceRepo, companyRepo, partnerRepo, operationRepo,
		txRunner, provisioner, soapClient,
		manage.Config{
			ReferenceCity: cfg.NFSe.ReferenceCity,
			VersaoSchema:  cfg.NFSe.VersaoSchema,
		},
		log,
	)

	// PDF: espelho da NFS-e transmitida
	espelhoGenerator := infrapdf.NewEspelhoGenerator()
	espelhoUC := manage.NewEspelhoUseCase(invoiceRepo, companyRepo, partnerRepo, espelhoGenerator, log)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Operator:  manageUC,
		Espelho:   espelhoUC,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}
}
