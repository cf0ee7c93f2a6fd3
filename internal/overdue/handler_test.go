package overdue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"library-backend/internal/loans"
	"library-backend/internal/platform/apierr"
)

func TestHandler_Scan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	n := &fakeNotifier{}
	s := newScanner(t, &fakeFinder{loans: []loans.Loan{{ID: "1", CustomerEmail: "a@example.com"}}}, n)

	r := gin.New()
	RegisterRoutes(r.Group("/api"), s, zaptest.NewLogger(t).Sugar())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/overdue/scan", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Overdue)
	assert.True(t, res.Notified)
	assert.Len(t, n.sent, 1)
}

func TestHandler_ScanInProgress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api"), &countingRunner{err: apierr.ErrScanInProgress}, zaptest.NewLogger(t).Sugar())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/overdue/scan", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}
