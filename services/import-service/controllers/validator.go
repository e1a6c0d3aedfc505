package controllers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/yashrajoria/construction-backend/services/common/errors"
	"github.com/yashrajoria/construction-backend/services/import-service/models"
	"github.com/yashrajoria/construction-backend/services/import-service/sheet"
)

// DefaultMaxUploadSize applies when the handler is built without a limit.
const DefaultMaxUploadSize = 20 * 1024 * 1024

// ImportForm is the form part of an upload request.
type ImportForm struct {
	Project    string `form:"project" validate:"required,max=200"`
	Subproject string `form:"subproject" validate:"max=200"`
}

// RequestValidator handles all input validation
type RequestValidator struct {
	validate      *validator.Validate
	maxUploadSize int64
}

func NewRequestValidator(maxUploadSize int64) *RequestValidator {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &RequestValidator{
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
	}
}

// ParseKind reads the :kind path parameter.
func (rv *RequestValidator) ParseKind(c *gin.Context) (models.ImportKind, error) {
	kind, err := models.ParseImportKind(strings.ToLower(strings.TrimSpace(c.Param("kind"))))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	return kind, nil
}

// ParseImportForm binds and validates the project selection.
func (rv *RequestValidator) ParseImportForm(c *gin.Context) (ImportForm, error) {
	var form ImportForm
	if err := c.ShouldBind(&form); err != nil {
		return form, apperrors.Wrap(apperrors.ErrBadRequest, fmt.Errorf("invalid form data: %w", err))
	}
	form.Project = strings.TrimSpace(form.Project)
	form.Subproject = strings.TrimSpace(form.Subproject)
	if err := rv.validate.Struct(&form); err != nil {
		return form, apperrors.Wrap(apperrors.ErrBadRequest, errors.New("project is required"))
	}
	return form, nil
}

// UploadedFile returns the "file" part after checking its type and size.
func (rv *RequestValidator) UploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrBadRequest, errors.New("file is required"))
	}
	if !rv.IsValidImportFile(file) {
		return nil, apperrors.Wrap(apperrors.ErrUnsupportedMedia, fmt.Errorf("%q: only .csv, .txt, .xlsx and .xls files are accepted", file.Filename))
	}
	if err := rv.ValidateFileSize(file); err != nil {
		return nil, err
	}
	return file, nil
}

// IsValidImportFile checks the extension against the formats the parser reads.
func (rv *RequestValidator) IsValidImportFile(file *multipart.FileHeader) bool {
	return sheet.SupportedExtension(file.Filename)
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > rv.maxUploadSize {
		return apperrors.Wrap(apperrors.ErrRequestTooLarge, fmt.Errorf("file too large (max %dMB)", rv.maxUploadSize/(1024*1024)))
	}
	return nil
}

// QueryBool parses an optional boolean query parameter.
func (rv *RequestValidator) QueryBool(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrBadRequest, fmt.Errorf("invalid boolean value for %q", name))
	}
	return v, nil
}

// ParseLimit reads ?limit= for history listings.
func (rv *RequestValidator) ParseLimit(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.Wrap(apperrors.ErrBadRequest, errors.New("invalid limit"))
	}
	if n > MaxHistoryLimit {
		n = MaxHistoryLimit
	}
	return n, nil
}
