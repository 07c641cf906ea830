package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/comandas/backend/internal/assign"
	"github.com/comandas/backend/internal/config"
	"github.com/comandas/backend/internal/db"
	"github.com/comandas/backend/internal/events"
	httpapi "github.com/comandas/backend/internal/http"
	"github.com/comandas/backend/internal/imap"
	"github.com/comandas/backend/internal/pdf"
	"github.com/comandas/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "comandas-backend").Logger()

	ctx, stop := context.WithCancel(context.Background())
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	bus := events.NewBus(store, logger)

	var renderer pdf.Renderer
	if cfg.PDFURL == "" {
		renderer = pdf.MockRenderer{}
		logger.Info().Msg("using built-in PDF renderer")
	} else {
		renderer = pdf.HTTPRenderer{BaseURL: cfg.PDFURL}
	}
	files := pdf.FileStore{Dir: cfg.PDFDir, BaseURL: "/pdfs"}

	routes := &service.RouteService{Store: store, Bus: bus, Logger: logger}
	processor := &service.Processor{
		Store:     store,
		Bus:       bus,
		Assigner:  assign.NewEngine(store),
		Routes:    routes,
		Threshold: cfg.FuzzyMatchThreshold,
		Logger:    logger,
	}
	printing := &service.PrintService{
		Store:    store,
		Bus:      bus,
		Routes:   routes,
		Renderer: renderer,
		Files:    files,
		Logger:   logger,
	}
	mailbox := imap.NewWorker(cfg, store, bus, processor, logger)
	shifts := &service.ShiftService{Store: store, Bus: bus, Routes: routes, Poller: mailbox, Logger: logger}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		mailbox.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		shifts.RunAutoCloser(ctx, 30*time.Second)
	}()

	router := httpapi.Router(cfg, store, bus, httpapi.Services{
		Shifts:    shifts,
		Routes:    routes,
		Printing:  printing,
		Processor: processor,
		Mailbox:   mailbox,
	}, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	stop()
	wg.Wait()
	logger.Info().Msg("server stopped")
}
