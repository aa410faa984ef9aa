package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"safewheels-anpr/internal/config"
	"safewheels-anpr/internal/cursor"
	"safewheels-anpr/internal/db"
	"safewheels-anpr/internal/delivery"
	httpapi "safewheels-anpr/internal/http"
	"safewheels-anpr/internal/imagestore"
	"safewheels-anpr/internal/notifier"
	"safewheels-anpr/internal/render"
	"safewheels-anpr/internal/repository"
	"safewheels-anpr/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Info().Str("addr", cfg.Server.Addr()).Msg("starting safewheels-anpr")

	gormDB, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	repo := repository.NewVehicleRepository(gormDB)
	images := imagestore.NewStore(cfg.Storage.ImagesDir, log.With().Str("component", "imagestore").Logger())
	ingest := service.NewIngestService(images, repo, log.With().Str("component", "ingest").Logger())

	telegram, err := notifier.NewTelegram(cfg.Telegram.BotToken, log.With().Str("component", "notifier").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram notifier")
	}

	renderer := render.NewRenderer(
		render.NewCVAnnotator(),
		cfg.Delivery.ConfidenceThreshold,
		log.With().Str("component", "render").Logger(),
	)

	cursors := cursor.NewFileStore(cfg.Storage.CursorFile)
	worker := delivery.NewWorker(
		repo,
		cursors,
		renderer,
		telegram,
		cfg.Delivery.RecipientChatIDs,
		cfg.Delivery.PollInterval(),
		log.With().Str("component", "delivery").Logger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Run(ctx)
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := httpapi.NewHandler(ingest, repo, log.With().Str("component", "http").Logger())
	handler.Register(
		router,
		httpapi.CameraAuth(cfg.Camera.Username, log),
		httpapi.OperatorAuth(cfg.Auth.JWTSecret),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "running",
			"delivery_state":  worker.State(),
			"delivery_cursor": worker.Cursor(),
		})
	})

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("addr", server.Addr).Msg("http server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	workerExited := false
	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-workerDone:
		// Only unclassified failures end the worker; shut down the whole
		// process so supervision restarts it cleanly.
		workerExited = true
		log.Error().Err(err).Msg("delivery worker exited")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}

	if !workerExited {
		select {
		case <-workerDone:
		case <-time.After(5 * time.Second):
			log.Warn().Msg("delivery worker did not stop in time")
		}
	}

	log.Info().Msg("safewheels-anpr stopped")
}
