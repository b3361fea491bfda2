// familyctl chạy các thao tác của engine từ dòng lệnh, trên Postgres
// hoặc trên fixture YAML nạp vào bộ nhớ.
package main

import (
	"os"

	"family-registry-backend/internal/config"
	"family-registry-backend/pkg/logger"
)

func main() {
	config.LoadEnv()
	logger.Init(os.Getenv("APP_ENV"))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
