package main

import (
	"html/template"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"namify/internal/cashu"
	"namify/internal/config"
	"namify/internal/database"
	"namify/internal/handlers"
	"namify/internal/services"
	"namify/internal/web"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Init DB
	if err := database.InitDB(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}

	// 3. Domain services
	prices := services.NewPriceTable(cfg.PricingOverride, cfg.RenewalOverride, cfg.Premium())
	verifier := cashu.NewVerifier(cfg.Mints())
	lifecycle := services.NewLifecycle(database.DB)
	reservations := services.NewReservation(
		database.DB,
		lifecycle,
		prices,
		verifier,
		services.LogMailer{},
		cfg.PublicDomain,
		time.Duration(cfg.ReservationTTLHours)*time.Hour,
	)

	if len(cfg.Mints()) == 0 {
		log.Printf("Warning: no trusted mints configured, cashu payments will be rejected")
	}

	// 4. API Server & HTML Renderer
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Init Template engine
	renderer := &web.TemplateRenderer{
		Templates: map[string]*template.Template{
			"confirm.html": template.Must(template.ParseFiles("web/templates/layout.html", "web/templates/confirm.html")),
		},
	}
	e.Renderer = renderer

	// API Routes
	api := e.Group("/api")
	handlers.RegisterRoutes(e, api, cfg, lifecycle, reservations, prices)

	log.Printf("Namify starting on %s...", cfg.ListenAddr)
	e.Logger.Fatal(e.Start(cfg.ListenAddr))
}
