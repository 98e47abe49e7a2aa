package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/rfid-gateway/internal/inventory"
)

// BreakerProbe 下游熔断器的只读视图
type BreakerProbe interface {
	Name() string
	State() inventory.BreakerState
	Trips() int64
}

// SinkChecker 汇报各下游熔断器状态，有熔断打开即降级
type SinkChecker struct {
	breakers []BreakerProbe
}

func NewSinkChecker(breakers ...BreakerProbe) *SinkChecker {
	return &SinkChecker{breakers: breakers}
}

func (c *SinkChecker) Name() string { return "sinks" }

func (c *SinkChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	details := make(map[string]interface{}, len(c.breakers))
	open := 0
	for _, b := range c.breakers {
		st := b.State()
		if st == inventory.BreakerOpen {
			open++
		}
		details[b.Name()] = map[string]interface{}{"state": st.String(), "trips": b.Trips()}
	}
	res := CheckResult{Status: StatusHealthy, Message: "ok", Details: details}
	if open > 0 {
		res.Status = StatusDegraded
		res.Message = fmt.Sprintf("%d sink(s) circuit open", open)
	}
	res.Latency = time.Since(start)
	return res
}
