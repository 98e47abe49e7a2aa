package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/rfid-gateway/internal/inventory"
)

// receiver 校验签名并记录收到的事件
type receiver struct {
	*httptest.Server
	mu     sync.Mutex
	events []Event
	calls  atomic.Int32
	fail   int32 // 前 fail 次返回 503
	badSig int
}

func newReceiver(t *testing.T, secret string, fail int32) *receiver {
	rc := &receiver{fail: fail}
	rc.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := rc.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		ts, _ := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		canonical := Canonical(r.Method, r.URL.Path, ts, r.Header.Get("X-Nonce"), body)

		rc.mu.Lock()
		defer rc.mu.Unlock()
		if !Verify(secret, canonical, r.Header.Get("X-Signature")) {
			rc.badSig++
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= rc.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rc.events = append(rc.events, ev)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rc.Close)
	return rc
}

func TestSink_Write(t *testing.T) {
	rc := newReceiver(t, "s3cret", 0)
	p, err := NewPusher(nil, rc.URL+"/hooks/tags", "key-1", "s3cret", 2, nil)
	require.NoError(t, err)
	sink := NewSink(p, "dock-1")
	assert.Equal(t, "webhook", sink.Name())

	obs := []inventory.Observation{{ID: uuid.New(), ReaderID: "dock-1", EPC: "E2000017220B012318506A91", RSSI: -46}}
	require.NoError(t, sink.Write(context.Background(), obs))

	rc.mu.Lock()
	defer rc.mu.Unlock()
	require.Len(t, rc.events, 1)
	assert.Equal(t, EventTagsObserved, rc.events[0].Event)
	assert.Equal(t, "dock-1", rc.events[0].ReaderID)
	assert.Equal(t, "E2000017220B012318506A91", rc.events[0].Tags[0].EPC)
	assert.Zero(t, rc.badSig)
}

func TestPusher_Retry(t *testing.T) {
	tests := []struct {
		name      string
		fail      int32
		retries   int
		wantErr   bool
		wantCalls int32
	}{
		{"一次失败后成功", 1, 2, false, 2},
		{"重试耗尽", 5, 1, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newReceiver(t, "k", tt.fail)
			p, err := NewPusher(nil, rc.URL, "", "k", tt.retries, nil)
			require.NoError(t, err)
			err = NewSink(p, "dock-1").Write(context.Background(), nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, rc.calls.Load())
		})
	}
}

func TestPusher_ClientErrorNotRetried(t *testing.T) {
	rc := newReceiver(t, "right", 0)
	p, err := NewPusher(nil, rc.URL, "", "wrong", 3, nil)
	require.NoError(t, err)
	assert.Error(t, p.Push(context.Background(), Event{Event: EventTagsObserved, Nonce: "n1"}))
	assert.Equal(t, int32(1), rc.calls.Load())
}

func TestNewPusher_InvalidURL(t *testing.T) {
	_, err := NewPusher(nil, "ftp://example.com/x", "", "", 0, nil)
	assert.Error(t, err)
}

func TestSign(t *testing.T) {
	c := Canonical("post", "/hooks", 1700000000, "abc", []byte(`{}`))
	assert.Equal(t, "POST\n/hooks\n1700000000\nabc\n44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a", c)
	assert.True(t, Verify("k", c, Sign("k", c)))
	assert.False(t, Verify("k2", c, Sign("k", c)))
}
