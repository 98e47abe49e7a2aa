package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// lastSeenKey 每个读写器一张 EPC -> 最近读取时间的哈希表
const lastSeenKey = "r200:last_seen:%s"

// TagEvent 发布到 Redis Stream 的标签事件
type TagEvent struct {
	ID        string
	SessionID string
	ReaderID  string
	EPC       string
	RSSI      int8
	SeenAt    time.Time
}

// TagStream 标签事件发布器：XADD 到 Stream，同时刷新 last-seen 哈希
type TagStream struct {
	client *Client
	stream string
	maxLen int64
}

// NewTagStream 创建发布器；maxLen<=0 时不裁剪
func NewTagStream(client *Client, stream string, maxLen int64) *TagStream {
	return &TagStream{client: client, stream: stream, maxLen: maxLen}
}

// Publish 以 pipeline 方式批量发布
func (s *TagStream) Publish(ctx context.Context, events ...TagEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, e := range events {
		args := &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]any{
				"id":      e.ID,
				"session": e.SessionID,
				"reader":  e.ReaderID,
				"epc":     e.EPC,
				"rssi":    strconv.Itoa(int(e.RSSI)),
				"seen_at": e.SeenAt.UTC().Format(time.RFC3339Nano),
			},
		}
		if s.maxLen > 0 {
			args.MaxLen = s.maxLen
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
		pipe.HSet(ctx, fmt.Sprintf(lastSeenKey, e.ReaderID), e.EPC, e.SeenAt.UnixMilli())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish tag events: %w", err)
	}
	return nil
}

// LastSeen 返回某读写器下 EPC 的最近读取时间，未读到时 ok=false
func (s *TagStream) LastSeen(ctx context.Context, readerID, epc string) (time.Time, bool, error) {
	ms, err := s.client.HGet(ctx, fmt.Sprintf(lastSeenKey, readerID), epc).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// Recent 按时间倒序读取最近 n 条事件
func (s *TagStream) Recent(ctx context.Context, n int64) ([]TagEvent, error) {
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]TagEvent, 0, len(msgs))
	for _, m := range msgs {
		e := TagEvent{
			ID:        str(m.Values["id"]),
			SessionID: str(m.Values["session"]),
			ReaderID:  str(m.Values["reader"]),
			EPC:       str(m.Values["epc"]),
		}
		if v, err := strconv.Atoi(str(m.Values["rssi"])); err == nil {
			e.RSSI = int8(v)
		}
		if t, err := time.Parse(time.RFC3339Nano, str(m.Values["seen_at"])); err == nil {
			e.SeenAt = t
		}
		out = append(out, e)
	}
	return out, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
