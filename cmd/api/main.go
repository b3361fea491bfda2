package main

import (
	"github.com/gin-gonic/gin"

	"family-registry-backend/internal/config"
	"family-registry-backend/pkg/logger"
)

func main() {
	// ========================================
	// LOAD ENVIRONMENT VARIABLES
	// ========================================
	// .env cho local; production dùng system environment variables
	envLoaded := config.LoadEnv()

	env := getEnv("APP_ENV", "development")
	logger.Init(env)
	if !envLoaded {
		logger.Info("[API] no .env file found, using system environment variables", map[string]interface{}{})
	}

	// ========================================
	// SET GIN MODE
	// ========================================
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	Serve()
}
