package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-messaging-backend/internal/config"
	handler "invoice-messaging-backend/internal/handlers"
	"invoice-messaging-backend/internal/repository"
	"invoice-messaging-backend/internal/services/customers"
	"invoice-messaging-backend/internal/services/invoicing"
	"invoice-messaging-backend/internal/services/pdf"
	"invoice-messaging-backend/internal/services/wati"
)

// CORS builds the cross-origin policy for the web client.
func CORS(cfg *config.Config) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	origins := cfg.AllowedOrigins()
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return cors.New(c)
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config, zl *zap.Logger) error {
	handler.UseJSONFieldNames()

	customerRepo := repository.NewCustomerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	messageRepo := repository.NewDeliveryMessageRepository(db)

	renderer, err := pdf.NewRenderer(cfg.PDFStorageDir)
	if err != nil {
		return err
	}

	// Interfaces stay nil when the integration is off.
	var (
		notifier invoicing.Notifier
		watiAPI  handler.WatiAPI
	)
	if cfg.Wati.Enabled {
		client := wati.New(wati.Config{
			Endpoint:      cfg.Wati.APIEndpoint,
			Token:         cfg.Wati.APIToken,
			ChannelNumber: cfg.Wati.ChannelNumber,
			SenderNumber:  cfg.Wati.SenderNumber,
			TemplateName:  cfg.Wati.TemplateName,
			CountryCode:   cfg.Wati.DefaultCountryCode,
			Timeout:       cfg.Wati.Timeout,
		}, wati.DefaultTemplates(), zl)
		notifier = client
		watiAPI = client
	}

	invoiceService := invoicing.NewInvoiceService(
		customerRepo,
		invoiceRepo,
		messageRepo,
		renderer,
		notifier,
		invoicing.RandomIdentifiers{},
		invoicing.Options{
			NotifyEnabled:  cfg.Wati.Enabled,
			PublicLinks:    cfg.PublicLinksEnabled,
			BaseURL:        cfg.BackendURL(),
			FrontendURL:    cfg.PublicFrontendURL(),
			PDFURLOverride: cfg.Wati.TestPDFURL,
			CountryCode:    cfg.Wati.DefaultCountryCode,
		},
		zl,
	)
	customerService := customers.NewCustomerService(customerRepo, zl)

	healthHandler := handler.NewHealthHandler(db, cfg.AppEnv, zl)
	customerHandler := handler.NewCustomerHandler(customerService, zl)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, zl)
	watiHandler := handler.NewWatiHandler(invoiceService, watiAPI, zl)

	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", healthHandler.Metrics)

	api := r.Group("/api")

	// Health check
	api.GET("/health", healthHandler.Health)

	custs := api.Group("/customers")
	{
		custs.GET("", customerHandler.List)
		custs.POST("", customerHandler.Create)
		custs.GET("/:id", customerHandler.Get)
		custs.PUT("/:id", customerHandler.Update)
		custs.DELETE("/:id", customerHandler.Delete)
	}

	invoices := api.Group("/invoices")
	{
		invoices.GET("", invoiceHandler.List)
		invoices.POST("", invoiceHandler.Create)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.GET("/:id/pdf", invoiceHandler.PDF)
	}

	api.GET("/public/invoices/:token", invoiceHandler.Public)
	api.GET("/dashboard", invoiceHandler.Dashboard)

	// Provider callbacks and operator tooling
	w := api.Group("/wati")
	w.POST("/webhook", watiHandler.Webhook)
	w.GET("/templates", watiHandler.Templates)
	w.POST("/test-template", watiHandler.TestTemplate)
	w.GET("/messages/:messageId", watiHandler.MessageStatus)

	return nil
}
