package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/config"
	"github.com/procurahq/procura/internal/container"
	httpapi "github.com/procurahq/procura/internal/interfaces/http"
	"github.com/procurahq/procura/pkg/utils"
)

func main() {
	// Pull credentials from a .env file when one is present. Values already
	// set in the environment win.
	_ = gotenv.Load()

	configPath := os.Getenv("PROCURA_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting procurement workflow system",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		logger.Fatal("Failed to build container", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	handlers := httpapi.NewHandlers(
		c.Engine(),
		c.Services().Offer,
		c.Services().Notification,
		c.Services().Evaluation,
		c.Repositories().PurchaseOrder,
		c.FileStorage(),
		httpLogger{logger},
	).WithHealth(containerHealth(c))

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, c.Normalizer(), httpLogger{logger})

	// Cancel the root context on SIGINT/SIGTERM. Start blocks until then
	// and shuts the listener down itself.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}

	if err := c.Close(); err != nil {
		logger.Error("Failed to close container", zap.Error(err))
	}

	logger.Info("Server exited")
}

// containerHealth exposes the container's component report through the
// health endpoint.
func containerHealth(c *container.Container) httpapi.HealthFunc {
	return func() (bool, map[string]httpapi.ComponentStatus) {
		report := c.Health()
		components := make(map[string]httpapi.ComponentStatus, len(report.Components))
		for name, comp := range report.Components {
			components[name] = httpapi.ComponentStatus{
				Healthy: comp.Healthy,
				Message: comp.Message,
			}
		}
		return report.Overall, components
	}
}

// httpLogger adapts zap to the HTTP layer's logger interface.
type httpLogger struct {
	logger *zap.Logger
}

func (l httpLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l httpLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, keysAndValues...)
}
