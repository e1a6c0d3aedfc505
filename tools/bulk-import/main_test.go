package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func siteBackend(t *testing.T, posts *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(posts, 1)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/projects":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Tower A"}]`))
		case "/units":
			_, _ = w.Write([]byte(`[{"id":5,"name":"cum"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTemplateCmd_WritesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boq.csv")

	out, err := run(t, "template", "--kind", "activities", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Subproject,Type,SL No,Activities"))
}

func TestTemplateCmd_UnknownKind(t *testing.T) {
	_, err := run(t, "template", "--kind", "bricks", "--out", filepath.Join(t.TempDir(), "x.xlsx"))
	assert.ErrorContains(t, err, `unknown import kind "bricks"`)
}

func TestActivitiesCmd_DryRunPrintsLogAndTally(t *testing.T) {
	var posts int32
	srv := siteBackend(t, &posts)
	path := filepath.Join(t.TempDir(), "boq.csv")
	_, err := run(t, "template", "--kind", "activities", "--out", path)
	require.NoError(t, err)

	out, err := run(t, "activities", "--api-url", srv.URL, "--file", path, "--project", "Tower A", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Row 2 (Foundation): Success\n")
	assert.Contains(t, out, "Row 3 (Excavation): Success\n")
	assert.Equal(t, 1, strings.Count(out, "Row 3 (Excavation)"), "each log line is printed once")
	assert.Contains(t, out, "dry run: nothing was created")
	assert.Contains(t, out, "done: 2 succeeded, 0 failed, 2 total")
	assert.Zero(t, atomic.LoadInt32(&posts))
}

func TestActivitiesCmd_PreflightErrors(t *testing.T) {
	var posts int32
	srv := siteBackend(t, &posts)
	path := filepath.Join(t.TempDir(), "boq.csv")
	require.NoError(t, os.WriteFile(path, []byte("Type,Activities\nheading,Foundation\n"), 0o644))

	_, err := run(t, "activities", "--api-url", srv.URL, "--file", path, "--project", "Tower Z")
	assert.ErrorContains(t, err, "Tower Z")

	t.Setenv("SITE_API_URL", "")
	_, err = run(t, "activities", "--file", path, "--project", "Tower A")
	assert.ErrorContains(t, err, "SITE_API_URL is required")

	_, err = run(t, "labours", "--api-url", srv.URL, "--project", "Tower A")
	assert.ErrorContains(t, err, `required flag(s) "file" not set`)
	assert.Zero(t, atomic.LoadInt32(&posts))
}
