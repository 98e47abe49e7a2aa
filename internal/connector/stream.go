package connector

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
)

// Stream 多次轮询产出的标签序列，按需从传输端读取。
// 与所属 Connector 共用一个 goroutine；停止轮询或关闭连接器后不再产出。
type Stream struct {
	c      *Connector
	buf    []r200.TagObservation
	closed bool
}

// Next 返回下一条标签，阻塞直到有数据、ctx 取消、传输出错或流被关闭。
// 一条通知中的多条记录按顺序逐条返回。
func (s *Stream) Next(ctx context.Context) (r200.TagObservation, error) {
	for {
		if s.closed {
			return r200.TagObservation{}, ErrStreamClosed
		}
		if len(s.buf) > 0 {
			t := s.buf[0]
			s.buf = s.buf[1:]
			return t, nil
		}
		if err := ctx.Err(); err != nil {
			return r200.TagObservation{}, err
		}
		if err := s.poll(ctx); err != nil {
			return r200.TagObservation{}, err
		}
	}
}

// poll 读取一次并把标签放入缓冲
func (s *Stream) poll(ctx context.Context) error {
	c := s.c
	deadline := time.Now().Add(c.opts.readTimeout)
	frames, err := c.fill(ctx, deadline)
	for _, f := range frames {
		switch {
		case isTagReport(f, r200.CmdMultiPoll):
			resp, derr := r200.Decode(f)
			if derr != nil {
				c.log.Warn("drop malformed tag report", zap.Error(derr))
				continue
			}
			tags := resp.(r200.TagReport).Tags
			s.buf = append(s.buf, tags...)
			if c.opts.metrics != nil {
				c.opts.metrics.TagsReadTotal.Add(float64(len(tags)))
			}
		case isNoTag(f):
			// 本轮未发现标签
		case f.Type == r200.TypeResponse && f.IsError():
			resp, derr := r200.Decode(f)
			if derr != nil {
				return derr
			}
			me := resp.(*r200.ModuleError)
			me.Command = r200.CmdMultiPoll
			return me
		default:
			c.enqueue(f)
		}
	}
	return err
}

// All 以迭代器形式消费流；遇到错误时产出该错误后结束，流关闭则直接结束
func (s *Stream) All(ctx context.Context) iter.Seq2[r200.TagObservation, error] {
	return func(yield func(r200.TagObservation, error) bool) {
		for {
			t, err := s.Next(ctx)
			if errors.Is(err, ErrStreamClosed) {
				return
			}
			if err != nil {
				yield(t, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

// Closed 流是否已关闭
func (s *Stream) Closed() bool {
	return s.closed
}
