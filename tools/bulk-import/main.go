// Command bulk-import uploads activity and labour spreadsheets to the site
// backend from a terminal.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yashrajoria/construction-backend/services/common/logger"
)

func main() {
	_ = godotenv.Load()
	flush := logger.Initialize(logger.Options{Env: os.Getenv("ENV"), File: os.Getenv("LOG_FILE")})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		zap.L().Error("bulk import failed", zap.Error(err))
	}
	flush()
	if err != nil {
		os.Exit(1)
	}
}
