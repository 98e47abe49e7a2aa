package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/rfid-gateway/internal/connector"
	"github.com/taoyao-code/rfid-gateway/internal/metrics"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	"github.com/taoyao-code/rfid-gateway/internal/simulator"
	pgstorage "github.com/taoyao-code/rfid-gateway/internal/storage/pg"
	redisstorage "github.com/taoyao-code/rfid-gateway/internal/storage/redis"
)

var (
	tagA = r200.TagObservation{RSSI: 0xC9, PC: 0x3400, EPC: []byte{0x30, 0x75, 0x1F, 0xEB, 0x70, 0x5C, 0x59, 0x04, 0xE3, 0xD5, 0x0D, 0x70}, CRC: 0x3A76, HasCRC: true}
	tagB = r200.TagObservation{RSSI: 0xD2, PC: 0x3000, EPC: []byte{0xE2, 0x00, 0x00, 0x17, 0x22, 0x0B, 0x01, 0x23, 0x18, 0x50, 0x6A, 0x91}, CRC: 0x0F0F, HasCRC: true}
)

type memSink struct {
	mu   sync.Mutex
	name string
	obs  []Observation
	err  error
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Write(_ context.Context, obs []Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.obs = append(s.obs, obs...)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.obs)
}

type memSessions struct {
	mu       sync.Mutex
	created  []pgstorage.Session
	finished map[uuid.UUID]int64
	reasons  map[uuid.UUID]string
}

func newMemSessions() *memSessions {
	return &memSessions{finished: map[uuid.UUID]int64{}, reasons: map[uuid.UUID]string{}}
}

func (m *memSessions) CreateSession(_ context.Context, s pgstorage.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, s)
	return nil
}

func (m *memSessions) FinishSession(_ context.Context, id uuid.UUID, _ time.Time, n int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[id] = n
	m.reasons[id] = reason
	return nil
}

type memSettings struct {
	mu      sync.Mutex
	changes []string
}

func (m *memSettings) add(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, s)
	return nil
}

func (m *memSettings) RecordPower(_ context.Context, _ string, p uint16) error {
	return m.add("power=" + r200.Power(p).String())
}

func (m *memSettings) RecordChannel(_ context.Context, _ string, ch uint8) error {
	return m.add("channel=" + string(rune('0'+ch)))
}

func (m *memSettings) RecordRegion(_ context.Context, _ string, r uint8) error {
	return m.add("region=" + r200.Region(r).String())
}

type fakePublisher struct {
	events []redisstorage.TagEvent
}

func (p *fakePublisher) Publish(_ context.Context, events ...redisstorage.TagEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type fakeWriter struct {
	rows []pgstorage.Observation
}

func (w *fakeWriter) InsertObservations(_ context.Context, obs []pgstorage.Observation) error {
	w.rows = append(w.rows, obs...)
	return nil
}

func newTestService(t *testing.T, sim *simulator.Module, opts Options) *Service {
	t.Helper()
	conn := connector.Open(sim,
		connector.WithTimeout(300*time.Millisecond),
		connector.WithReadTimeout(10*time.Millisecond),
		connector.WithIdleWindow(30*time.Millisecond),
	)
	if opts.ReaderID == "" {
		opts.ReaderID = "dock-1"
	}
	svc := NewService(conn, opts)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc
}

func TestService_Settings(t *testing.T) {
	ctx := context.Background()
	rec := &memSettings{}
	svc := newTestService(t, simulator.New(simulator.WithEchoSetPower()), Options{Settings: rec})

	applied, err := svc.SetPower(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, r200.Power(2000), applied)
	p, err := svc.Power(ctx)
	require.NoError(t, err)
	assert.Equal(t, r200.Power(2000), p)

	require.NoError(t, svc.SetChannel(ctx, 2))
	ch, err := svc.Channel(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), ch)

	require.NoError(t, svc.SetRegion(ctx, r200.RegionChina900))
	region, err := svc.Region(ctx)
	require.NoError(t, err)
	assert.Equal(t, r200.RegionChina900, region)

	mhz, err := svc.Frequency(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 920.625, mhz, 1e-9)

	info, err := svc.ModuleInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "MagicRF", info.Manufacturer)

	assert.Equal(t, []string{"power=20.00dBm", "channel=2", "region=china900"}, rec.changes)
	require.NoError(t, svc.Ping(ctx))
}

func TestService_Inventory(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{name: "mem"}
	failing := &memSink{name: "broken", err: errors.New("disk full")}
	sessions := newMemSessions()
	reg := prometheus.NewRegistry()
	m := metrics.NewAppMetrics(reg)

	svc := newTestService(t, simulator.New(simulator.WithTags(tagA, tagB, tagA)), Options{
		Sinks:    []Sink{failing, sink},
		Sessions: sessions,
		Deduper:  NewMemoryDeduper(time.Minute),
		Metrics:  m,
	})

	res, err := svc.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, res.Observations, 3)
	assert.Equal(t, "30751FEB705C5904E3D50D70", res.Observations[0].EPC)
	assert.Equal(t, int8(-55), res.Observations[0].RSSI)
	assert.Equal(t, "dock-1", res.Observations[1].ReaderID)

	// 下游只收到去重后的两条；单个下游失败不影响其他下游
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("broken")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TagsUniqueTotal))

	require.Len(t, sessions.created, 1)
	assert.Equal(t, ModeSingle, sessions.created[0].Mode)
	assert.Equal(t, int64(3), sessions.finished[res.SessionID])

	// 窗口内再次盘点，下游不再收到
	_, err = svc.Inventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sink.count())
}

func TestService_InventoryNoTags(t *testing.T) {
	svc := newTestService(t, simulator.New(), Options{})
	res, err := svc.Inventory(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, res.Observations)
	assert.Empty(t, res.Observations)
}

func TestService_Streaming(t *testing.T) {
	ctx := context.Background()
	sink := &memSink{name: "mem"}
	sessions := newMemSessions()
	sim := simulator.New(simulator.WithTags(tagA, tagB), simulator.WithRoundInterval(5*time.Millisecond))
	svc := newTestService(t, sim, Options{Sinks: []Sink{sink}, Sessions: sessions, PollCount: 500})

	id, err := svc.StartStreaming(ctx, 0)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	_, err = svc.StartStreaming(ctx, 10)
	assert.ErrorIs(t, err, ErrStreaming)
	_, err = svc.Power(ctx)
	assert.ErrorIs(t, err, ErrStreaming)
	require.NoError(t, svc.Ping(ctx))

	require.Eventually(t, func() bool { return sink.count() >= 6 }, 2*time.Second, 10*time.Millisecond)
	st := svc.Status()
	assert.True(t, st.Streaming)
	assert.Equal(t, "streaming", st.State)
	require.NotNil(t, st.SessionID)
	assert.Equal(t, id, *st.SessionID)

	final, err := svc.StopStreaming(ctx)
	require.NoError(t, err)
	assert.False(t, final.Streaming)
	assert.GreaterOrEqual(t, final.TagsSeen, int64(6))
	assert.False(t, sim.Streaming())

	assert.Equal(t, ModeContinuous, sessions.created[0].Mode)
	assert.Equal(t, 500, sessions.created[0].PollCount)
	assert.Equal(t, final.TagsSeen, sessions.finished[id])
	assert.Equal(t, "stopped", sessions.reasons[id])

	// 停止后读写器恢复可用
	_, err = svc.Power(ctx)
	require.NoError(t, err)
	_, err = svc.StopStreaming(ctx)
	assert.ErrorIs(t, err, ErrNotStreaming)
}

func TestService_StreamingTransportFailure(t *testing.T) {
	sim := simulator.New(simulator.WithTags(tagA), simulator.WithRoundInterval(5*time.Millisecond))
	svc := newTestService(t, sim, Options{})

	_, err := svc.StartStreaming(context.Background(), 1000)
	require.NoError(t, err)
	sim.FailNextRead(errors.New("cable unplugged"))

	require.Eventually(t, func() bool { return !svc.Streaming() }, 2*time.Second, 10*time.Millisecond)
	st := svc.Status()
	assert.Contains(t, st.LastError, "cable unplugged")
}

func TestService_Errors(t *testing.T) {
	sim := simulator.New()
	svc := newTestService(t, sim, Options{})
	sim.Mute(true)

	_, err := svc.Power(context.Background())
	assert.ErrorIs(t, err, connector.ErrTimeout)
	assert.NotEmpty(t, svc.Status().LastError)
	assert.Error(t, svc.Ping(context.Background()))
}

func TestSinks_Convert(t *testing.T) {
	ctx := context.Background()
	obs := []Observation{newObservation(uuid.New(), "dock-1", tagA, time.Now())}
	noCRC := tagB
	noCRC.HasCRC = false
	obs = append(obs, newObservation(obs[0].SessionID, "dock-1", noCRC, time.Now()))

	w := &fakeWriter{}
	require.NoError(t, NewPGSink(w).Write(ctx, obs))
	require.Len(t, w.rows, 2)
	require.NotNil(t, w.rows[0].CRC)
	assert.Equal(t, uint16(0x3A76), *w.rows[0].CRC)
	assert.Nil(t, w.rows[1].CRC)
	assert.Equal(t, uint16(0x3400), w.rows[0].PC)

	p := &fakePublisher{}
	require.NoError(t, NewRedisSink(p).Write(ctx, obs))
	require.Len(t, p.events, 2)
	assert.Equal(t, obs[0].ID.String(), p.events[0].ID)
	assert.Equal(t, "E2000017220B012318506A91", p.events[1].EPC)
}

func TestMemoryDeduper(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := NewMemoryDeduper(2 * time.Second)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	dup, _ := d.IsDuplicate(ctx, "A")
	assert.False(t, dup)
	dup, _ = d.IsDuplicate(ctx, "A")
	assert.True(t, dup)
	dup, _ = d.IsDuplicate(ctx, "B")
	assert.False(t, dup)

	now = now.Add(2 * time.Second)
	dup, _ = d.IsDuplicate(ctx, "A")
	assert.False(t, dup)

	d.prune(now.Add(5 * time.Second))
	assert.Zero(t, d.Len())
}
