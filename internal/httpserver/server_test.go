package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	appmetrics "github.com/taoyao-code/rfid-gateway/internal/metrics"
)

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second, Swagger: true}
	reg := appmetrics.NewRegistry()
	srv := New(cfg, "/metrics", appmetrics.Handler(reg), func() bool { return true }, zap.NewNop())

	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/metrics").Code)

	rr := serve(srv, "/swagger/doc.json")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/v1/reader/inventory")
}

func TestReadyzNotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{Addr: ":0"}
	srv := New(cfg, "", nil, func() bool { return false }, nil)

	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, "/swagger/doc.json").Code)
}

func TestRegister(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(cfgpkg.HTTPConfig{Addr: ":0"}, "", nil, nil, nil)
	srv.Register(func(r *gin.Engine) {
		r.GET("/extra", func(c *gin.Context) { c.String(http.StatusOK, "extra") })
	})
	rr := serve(srv, "/extra")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "extra", rr.Body.String())
}
