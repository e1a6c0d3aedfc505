package controllers

import (
	"context"
	"io"
	"time"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/services"
)

// Default configuration values
const (
	DefaultStatusTimeout   = 5 * time.Second
	DefaultSyncTimeout     = 15 * time.Minute
	DefaultValidateTimeout = 2 * time.Minute
	DefaultHistoryLimit    = 50
	MaxHistoryLimit        = 200
)

// ImportRunner is the part of services.ImportService the handlers call.
type ImportRunner interface {
	Import(ctx context.Context, req services.ImportRequest, filename string, r io.Reader, onProgress func(models.UploadOutcome)) (*models.UploadOutcome, error)
	ValidateImport(ctx context.Context, req services.ImportRequest, filename string, r io.Reader) (*models.UploadOutcome, error)
}
