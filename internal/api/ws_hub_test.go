package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/inventory"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
)

func TestHub_Broadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	hub := NewHub(zap.NewNop(), m, 1)
	r := gin.New()
	r.GET("/ws/tags", hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tags"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WSClientsGauge))

	// 超过上限的连接在升级前被拒绝
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int64(1), hub.Rejected())

	obs := []inventory.Observation{{ID: uuid.New(), ReaderID: "dock-1", EPC: "E2000017220B012318506A91", RSSI: -46}}
	require.NoError(t, hub.Write(context.Background(), obs))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got []inventory.Observation
	require.NoError(t, conn.ReadJSON(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "E2000017220B012318506A91", got[0].EPC)
	assert.Equal(t, int8(-46), got[0].RSSI)

	hub.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "websocket", hub.Name())
}

func TestHub_ReserveConcurrent(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, 3)

	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if hub.reserve() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), granted.Load())
	assert.Equal(t, int64(17), hub.Rejected())

	// 归还后可再次占用
	hub.release()
	assert.True(t, hub.reserve())
	assert.False(t, hub.reserve())
}

func TestHub_UpgradeFailureReleasesSlot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, 1)
	r := gin.New()
	r.GET("/ws/tags", hub.ServeWS)

	// 普通 HTTP 请求无法升级
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws/tags", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, hub.reserve())
}
