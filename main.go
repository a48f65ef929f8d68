// main.go - Entry point for the home dashboard backend

package main // Declares the package name

import ( // Import required packages
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/joho/godotenv"   // .env loading
	"github.com/sirupsen/logrus" // Logging
	"golang.org/x/sync/errgroup" // Server + worker lifecycle

	"go-home-dashboard/auth"     // Token denylist
	"go-home-dashboard/config"   // Project config management
	"go-home-dashboard/database" // Database connection and setup
	"go-home-dashboard/handlers" // HTTP handlers for API endpoints
	"go-home-dashboard/logging"  // Activity log hook
	"go-home-dashboard/mqtt"     // MQTT client logic
	"go-home-dashboard/server"   // Routes
)

const shutdownTimeout = 10 * time.Second

func main() { // Main function, program entry point
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not read .env")
	}

	// STEP 1: Load configuration and establish connections
	cfg := config.Load()
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logrus.Info(cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg) // Connect to the database
	if err != nil {
		logrus.WithError(err).Fatal("DB connection error")
	}
	defer database.Close(db)

	hub := logging.NewHub()
	logging.Install(database.LogStore{DB: db}, hub) // Audited lines become Log rows

	var deny auth.Denylist = auth.NewMemoryDenylist()
	if cfg.Redis.Addr != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			logrus.WithError(err).Fatal("redis connection error")
		}
		defer rdb.Close()
		deny = auth.NewRedisDenylist(rdb)
	}

	broker, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID) // Connect to the MQTT broker
	if err != nil {
		logrus.WithError(err).Fatal("MQTT connection error")
	}
	defer broker.Close()

	h := handlers.New(db, broker, cfg, deny, hub)
	if err := h.RecoverActivations(); err != nil { // Clear what the last run left queued or running
		logrus.WithError(err).Fatal("activation recovery error")
	}
	if err := broker.Subscribe(cfg.MQTT.TopicPrefix+"/#", h.HandleDeviceStatus); err != nil {
		logrus.WithError(err).Fatal("MQTT subscribe error")
	}

	// STEP 2: Create router and configure routes
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := server.NewRouter(h)
	if err != nil {
		logrus.WithError(err).Fatal("router setup error")
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.WithCORS(router, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// STEP 3: Run the web server and the activation worker until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.RunActivations(gctx)
		return nil
	})
	g.Go(func() error {
		logrus.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("server stopped with error")
	}
	logrus.Info("server stopped")
}
