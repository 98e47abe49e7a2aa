package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	pgstorage "github.com/taoyao-code/rfid-gateway/internal/storage/pg"
	redisstorage "github.com/taoyao-code/rfid-gateway/internal/storage/redis"
)

// Observation 一次标签读取事件
type Observation struct {
	ID        uuid.UUID           `json:"id"`
	SessionID uuid.UUID           `json:"sessionId"`
	ReaderID  string              `json:"readerId"`
	Tag       r200.TagObservation `json:"-"`
	EPC       string              `json:"epc"`
	RSSI      int8                `json:"rssi"`
	PC        uint16              `json:"pc"`
	SeenAt    time.Time           `json:"seenAt"`
}

func newObservation(session uuid.UUID, readerID string, tag r200.TagObservation, at time.Time) Observation {
	return Observation{
		ID:        uuid.New(),
		SessionID: session,
		ReaderID:  readerID,
		Tag:       tag,
		EPC:       tag.UID(),
		RSSI:      int8(tag.RSSI),
		PC:        tag.PC,
		SeenAt:    at,
	}
}

// Sink 标签事件下游。写入失败只记录日志，不影响盘点。
type Sink interface {
	Name() string
	Write(ctx context.Context, obs []Observation) error
}

// SessionStore 盘点会话持久化
type SessionStore interface {
	CreateSession(ctx context.Context, s pgstorage.Session) error
	FinishSession(ctx context.Context, id uuid.UUID, stoppedAt time.Time, tagCount int64, reason string) error
}

// observationWriter pg.Repository 中写标签记录的部分
type observationWriter interface {
	InsertObservations(ctx context.Context, obs []pgstorage.Observation) error
}

// PGSink 写入 tag_observations
type PGSink struct {
	repo observationWriter
}

func NewPGSink(repo observationWriter) *PGSink {
	return &PGSink{repo: repo}
}

func (s *PGSink) Name() string { return "postgres" }

func (s *PGSink) Write(ctx context.Context, obs []Observation) error {
	rows := make([]pgstorage.Observation, 0, len(obs))
	for _, o := range obs {
		row := pgstorage.Observation{
			ID:        o.ID,
			SessionID: o.SessionID,
			ReaderID:  o.ReaderID,
			EPC:       o.EPC,
			PC:        o.PC,
			RSSI:      o.RSSI,
			SeenAt:    o.SeenAt,
		}
		if o.Tag.HasCRC {
			crc := o.Tag.CRC
			row.CRC = &crc
		}
		rows = append(rows, row)
	}
	return s.repo.InsertObservations(ctx, rows)
}

// tagPublisher redis.TagStream 的发布部分
type tagPublisher interface {
	Publish(ctx context.Context, events ...redisstorage.TagEvent) error
}

// RedisSink 发布到 Redis Stream
type RedisSink struct {
	stream tagPublisher
}

func NewRedisSink(stream tagPublisher) *RedisSink {
	return &RedisSink{stream: stream}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, obs []Observation) error {
	events := make([]redisstorage.TagEvent, 0, len(obs))
	for _, o := range obs {
		events = append(events, redisstorage.TagEvent{
			ID:        o.ID.String(),
			SessionID: o.SessionID.String(),
			ReaderID:  o.ReaderID,
			EPC:       o.EPC,
			RSSI:      o.RSSI,
			SeenAt:    o.SeenAt,
		})
	}
	return s.stream.Publish(ctx, events...)
}
