// cmd/worker/startup.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"family-registry-backend/pkg/container"
	"family-registry-backend/pkg/logger"
)

// startServices performs health checks and starts the health endpoint
func startServices(c *container.Container) error {
	logger.Info("[Startup] Family registry worker starting", map[string]interface{}{
		"env": c.Config.App.Environment,
	})

	checks := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		// asynq không chạy được khi thiếu Redis nên worker bắt buộc có Redis
		{"Redis Connection", c.Redis.HealthCheck},
		{"PostgreSQL Connection", c.DB.HealthCheck},
	}

	for _, check := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := check.fn(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s failed: %w", check.name, err)
		}
		logger.Info("[Startup] check passed", map[string]interface{}{"check": check.name})
	}

	go startHealthCheckServer(c.Config.Worker.HealthAddr)
	return nil
}

// startHealthCheckServer: /health, /ready (Kubernetes probes) và /metrics
func startHealthCheckServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/ready", readyCheckHandler)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("[Health] Starting health check server", map[string]interface{}{"addr": addr})
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("[Health] Failed to start", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"UP","service":"family-registry-worker"}`))
}

func readyCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"READY"}`))
}
