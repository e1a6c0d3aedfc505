package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapDoesNotMutateSentinel(t *testing.T) {
	e := Wrap(ErrBadRequest, fmt.Errorf("boom"))
	assert.Equal(t, "Bad request: boom", e.Error())
	assert.Nil(t, ErrBadRequest.Err)
}

func TestRespond(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err      error
		status   int
		contains string
	}{
		{Wrap(ErrUnsupportedMedia, fmt.Errorf(".pdf")), http.StatusUnsupportedMediaType, ".pdf"},
		{fmt.Errorf("secret detail"), http.StatusInternalServerError, "Internal server error"},
		{ErrNotFound.WithDetails(gin.H{"id": "1"}), http.StatusNotFound, "Not found"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		Respond(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body["error"], tc.contains)
		assert.NotContains(t, w.Body.String(), "secret detail")
	}
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/x", func(c *gin.Context) { _ = c.Error(ErrForbidden) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
