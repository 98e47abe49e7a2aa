package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// Session 映射 inventory_sessions 表
type Session struct {
	ID         uuid.UUID  `json:"id"`
	ReaderID   string     `json:"readerId"`
	Mode       string     `json:"mode"` // single | continuous
	PollCount  int        `json:"pollCount"`
	StartedAt  time.Time  `json:"startedAt"`
	StoppedAt  *time.Time `json:"stoppedAt,omitempty"`
	TagCount   int64      `json:"tagCount"`
	StopReason *string    `json:"stopReason,omitempty"`
}

// Observation 映射 tag_observations 表
type Observation struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"sessionId"`
	ReaderID  string    `json:"readerId"`
	EPC       string    `json:"epc"`
	PC        uint16    `json:"pc"`
	RSSI      int8      `json:"rssi"`
	CRC       *uint16   `json:"crc,omitempty"`
	SeenAt    time.Time `json:"seenAt"`
}

// ObservationFilter 查询条件，零值字段不参与过滤
type ObservationFilter struct {
	ReaderID  string
	EPC       string
	SessionID uuid.UUID
	Since     time.Time
	Limit     int
}

// Repository 盘点会话与标签记录
type Repository struct {
	Pool *pgxpool.Pool
}

// CreateSession 新建盘点会话
func (r *Repository) CreateSession(ctx context.Context, s Session) error {
	const q = `INSERT INTO inventory_sessions (id, reader_id, mode, poll_count, started_at)
               VALUES ($1,$2,$3,$4,$5)`
	_, err := r.Pool.Exec(ctx, q, s.ID, s.ReaderID, s.Mode, s.PollCount, s.StartedAt)
	return err
}

// FinishSession 结束会话并写入标签总数
func (r *Repository) FinishSession(ctx context.Context, id uuid.UUID, stoppedAt time.Time, tagCount int64, reason string) error {
	const q = `UPDATE inventory_sessions
               SET stopped_at = $2, tag_count = $3, stop_reason = NULLIF($4, '')
               WHERE id = $1`
	tag, err := r.Pool.Exec(ctx, q, id, stoppedAt, tagCount, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetSession 按 ID 查询会话
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	const q = `SELECT id, reader_id, mode, poll_count, started_at, stopped_at, tag_count, stop_reason
               FROM inventory_sessions WHERE id = $1`
	var s Session
	err := r.Pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.ReaderID, &s.Mode, &s.PollCount, &s.StartedAt, &s.StoppedAt, &s.TagCount, &s.StopReason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertObservations 批量写入标签记录（单次往返）
func (r *Repository) InsertObservations(ctx context.Context, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	const q = `INSERT INTO tag_observations (id, session_id, reader_id, epc, pc, rssi, crc, seen_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	batch := &pgx.Batch{}
	for _, o := range obs {
		var crc *int32
		if o.CRC != nil {
			v := int32(*o.CRC)
			crc = &v
		}
		batch.Queue(q, o.ID, o.SessionID, o.ReaderID, o.EPC, int32(o.PC), int16(o.RSSI), crc, o.SeenAt)
	}
	br := r.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range obs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert observation: %w", err)
		}
	}
	return br.Close()
}

// RecentObservations 按时间倒序查询标签记录
func (r *Repository) RecentObservations(ctx context.Context, f ObservationFilter) ([]Observation, error) {
	q := `SELECT id, session_id, reader_id, epc, pc, rssi, crc, seen_at FROM tag_observations WHERE 1=1`
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND "+cond, len(args))
	}
	if f.ReaderID != "" {
		add("reader_id = $%d", f.ReaderID)
	}
	if f.EPC != "" {
		add("epc = $%d", f.EPC)
	}
	if f.SessionID != uuid.Nil {
		add("session_id = $%d", f.SessionID)
	}
	if !f.Since.IsZero() {
		add("seen_at >= $%d", f.Since)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY seen_at DESC LIMIT $%d", len(args))

	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Observation, 0)
	for rows.Next() {
		var (
			o    Observation
			pc   int32
			rssi int16
			crc  *int32
		)
		if err := rows.Scan(&o.ID, &o.SessionID, &o.ReaderID, &o.EPC, &pc, &rssi, &crc, &o.SeenAt); err != nil {
			return nil, err
		}
		o.PC, o.RSSI = uint16(pc), int8(rssi)
		if crc != nil {
			v := uint16(*crc)
			o.CRC = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountByEPC 会话内每个 EPC 的读取次数
func (r *Repository) CountByEPC(ctx context.Context, sessionID uuid.UUID) (map[string]int64, error) {
	const q = `SELECT epc, COUNT(*) FROM tag_observations WHERE session_id = $1 GROUP BY epc`
	rows, err := r.Pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			epc string
			n   int64
		)
		if err := rows.Scan(&epc, &n); err != nil {
			return nil, err
		}
		out[epc] = n
	}
	return out, rows.Err()
}
