package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

// APIError is a non-2xx answer from the site backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("site api: status=%d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a 429 from the backend.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// Message extracts the backend's message from err when it is an APIError.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token so requests act on their behalf.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey{}).(string); ok {
		return v
	}
	return ""
}

// SiteClient calls the construction-management REST backend.
type SiteClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewSiteClient creates a client; token is used when the context carries none.
func NewSiteClient(baseURL, token string, timeout time.Duration) *SiteClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SiteClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *SiteClient) ListProjects(ctx context.Context) ([]models.Project, error) {
	var raw []map[string]interface{}
	if err := c.getJSON(ctx, "/projects", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Project, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.Project{
			ID:   cast.ToInt64(r["id"]),
			Name: firstString(r, "name", "project_name"),
		})
	}
	return out, nil
}

func (c *SiteClient) ListSubprojects(ctx context.Context, projectID int64) ([]models.Subproject, error) {
	var raw []map[string]interface{}
	path := "/projects/" + strconv.FormatInt(projectID, 10) + "/subprojects"
	if err := c.getJSON(ctx, path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Subproject, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.Subproject{
			ID:        cast.ToInt64(r["id"]),
			UUID:      cast.ToString(r["uuid"]),
			Name:      firstString(r, "name", "subproject_name"),
			ProjectID: cast.ToInt64(firstValue(r, "project", "project_id")),
		})
	}
	return out, nil
}

func (c *SiteClient) ListHeadings(ctx context.Context, projectID, subprojectID int64) ([]models.Activity, error) {
	q := url.Values{}
	q.Set("project", strconv.FormatInt(projectID, 10))
	if subprojectID != 0 {
		q.Set("subproject", strconv.FormatInt(subprojectID, 10))
	}
	q.Set("type", string(models.TypeHeading))

	var raw []map[string]interface{}
	if err := c.getJSON(ctx, "/activities", q, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Activity, 0, len(raw))
	for _, r := range raw {
		a := models.Activity{
			ID:           cast.ToInt64(r["id"]),
			Name:         firstString(r, "name", "activities", "activity_name"),
			Type:         models.ActivityType(cast.ToString(r["type"])),
			ProjectID:    cast.ToInt64(firstValue(r, "project", "project_id")),
			SubprojectID: cast.ToInt64(firstValue(r, "subproject", "subproject_id")),
			HeadingID:    cast.ToInt64(r["heading"]),
			SlNo:         cast.ToString(r["sl_no"]),
		}
		// Some deployments ignore the type filter.
		if a.Type != "" && a.Type != models.TypeHeading {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *SiteClient) ListUnits(ctx context.Context) ([]models.Unit, error) {
	var raw []map[string]interface{}
	if err := c.getJSON(ctx, "/units", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Unit, 0, len(raw))
	for _, r := range raw {
		out = append(out, models.Unit{
			ID:         cast.ToInt64(r["id"]),
			Name:       firstString(r, "name", "unit_name"),
			Conversion: cast.ToString(r["conversion"]),
			Factor:     cast.ToFloat64(r["factor"]),
		})
	}
	return out, nil
}

func (c *SiteClient) CreateActivity(ctx context.Context, req models.ActivityCreateRequest) (*models.Created, error) {
	payload := map[string]interface{}{
		"name":    req.Name,
		"type":    req.Type,
		"project": req.ProjectID,
	}
	if req.SubprojectID != 0 {
		payload["subproject"] = req.SubprojectID
	}
	if req.HeadingID != 0 {
		payload["heading"] = req.HeadingID
	}
	if req.SlNo != "" {
		payload["sl_no"] = req.SlNo
	}
	if req.UnitID != 0 {
		payload["unit"] = req.UnitID
	}
	for k, v := range map[string]string{"quantity": req.Quantity, "rate": req.Rate, "amount": req.Amount} {
		if v != "" {
			payload[k] = v
		}
	}
	if req.StartDate != nil {
		payload["start_date"] = req.StartDate.Format("2006-01-02")
	}
	if req.EndDate != nil {
		payload["end_date"] = req.EndDate.Format("2006-01-02")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}
	var raw map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/activities", nil, bytes.NewReader(body), "application/json", &raw); err != nil {
		return nil, err
	}
	return createdFrom(raw)
}

// CreateLabour submits the labour form as multipart/form-data.
func (c *SiteClient) CreateLabour(ctx context.Context, req models.LabourCreateRequest) (*models.Created, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"name", req.Name},
		{"type", req.Type},
		{"category", req.Category},
		{"contractor", req.Contractor},
		{"phone", req.Phone},
		{"gender", req.Gender},
		{"daily_wage", req.DailyWage},
		{"project", strconv.FormatInt(req.ProjectID, 10)},
	}
	if req.SubprojectID != 0 {
		fields = append(fields, [2]string{"subproject", strconv.FormatInt(req.SubprojectID, 10)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var raw map[string]interface{}
	if err := c.do(ctx, http.MethodPost, "/labours", nil, &buf, w.FormDataContentType(), &raw); err != nil {
		return nil, err
	}
	return createdFrom(raw)
}

func (c *SiteClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *SiteClient) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	token := tokenFrom(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		zap.L().Warn("site api call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("site api request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read site api response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decodeEnvelope(data, out)
}

// decodeEnvelope accepts both {"data": ...} / {"results": ...} envelopes and bare payloads.
func decodeEnvelope(data []byte, out interface{}) error {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err == nil {
		for _, key := range []string{"data", "results"} {
			if inner, ok := env[key]; ok && len(inner) > 0 && string(inner) != "null" {
				if err := json.Unmarshal(inner, out); err == nil {
					return nil
				}
			}
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode site api response: %w", err)
	}
	return nil
}

func errorMessage(status int, body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := firstString(payload, "message", "error", "detail"); msg != "" {
			return msg
		}
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if list, ok := payload[k].([]interface{}); ok && len(list) > 0 {
				return k + ": " + cast.ToString(list[0])
			}
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return http.StatusText(status)
}

func createdFrom(raw map[string]interface{}) (*models.Created, error) {
	id, err := cast.ToInt64E(raw["id"])
	if err != nil || id == 0 {
		return nil, fmt.Errorf("site api response has no id")
	}
	return &models.Created{ID: id, Name: firstString(raw, "name", "activities")}, nil
}

func firstValue(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(cast.ToString(m[k])); s != "" {
			return s
		}
	}
	return ""
}
