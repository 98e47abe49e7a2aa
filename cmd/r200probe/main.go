// r200probe 直接通过串口/串口服务器与 R200 模块交互的调试工具
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/app"
	cfgpkg "github.com/taoyao-code/rfid-gateway/internal/config"
	"github.com/taoyao-code/rfid-gateway/internal/connector"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
)

func main() {
	transportKind := flag.String("transport", "serial", "reader transport: serial | tcp | sim")
	port := flag.String("port", "/dev/ttyUSB0", "serial port name")
	baud := flag.Int("baud", 115200, "serial baud rate")
	addr := flag.String("addr", "", "serial bridge address host:port (transport=tcp)")
	simTags := flag.String("sim-tags", "E2000017220B012318506A91", "comma separated EPCs for transport=sim")
	cmd := flag.String("cmd", "info", "info | power | set-power | channel | set-channel | region | set-region | freq | poll | stream | stop")
	value := flag.String("value", "", "value for set-* commands (dBm, channel index or region name)")
	count := flag.Uint("count", 100, "poll count for stream")
	duration := flag.Duration("duration", 10*time.Second, "how long to stream before stopping")
	timeout := flag.Duration("timeout", time.Second, "command timeout")
	verbose := flag.Bool("v", false, "log raw frames")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	cfg := cfgpkg.ReaderConfig{
		Transport: *transportKind,
		Serial:    cfgpkg.SerialConfig{Port: *port, Baud: *baud},
		TCP:       cfgpkg.TCPConfig{Addr: *addr, DialTimeout: 3 * time.Second},
		Sim:       cfgpkg.SimConfig{Tags: splitList(*simTags), RoundInterval: 100 * time.Millisecond},
		Timeout:   *timeout,
	}
	tr, err := app.OpenTransport(cfg, logger)
	if err != nil {
		fail(err)
	}
	conn := app.NewConnector(cfg, tr, nil, logger)
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, conn, *cmd, *value, uint16(*count), *duration); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, c *connector.Connector, cmd, value string, count uint16, d time.Duration) error {
	switch cmd {
	case "info":
		info, err := c.GetModuleInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Println(info)
	case "power":
		p, err := c.GetPower(ctx)
		if err != nil {
			return err
		}
		fmt.Println(p)
	case "set-power":
		var dbm float64
		if _, err := fmt.Sscanf(value, "%g", &dbm); err != nil {
			return fmt.Errorf("invalid dBm %q", value)
		}
		p, err := c.SetPower(ctx, r200.PowerFromDBm(dbm))
		if err != nil {
			return err
		}
		fmt.Println("applied", p)
	case "channel":
		ch, err := c.GetChannel(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ch)
	case "set-channel":
		var ch uint8
		if _, err := fmt.Sscanf(value, "%d", &ch); err != nil {
			return fmt.Errorf("invalid channel %q", value)
		}
		return c.SetChannel(ctx, ch)
	case "region":
		r, err := c.GetRegion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(r)
	case "set-region":
		r, err := r200.ParseRegion(strings.ToLower(value))
		if err != nil {
			return err
		}
		return c.SetRegion(ctx, r)
	case "freq":
		mhz, err := c.WorkingFrequency(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%.3f MHz\n", mhz)
	case "poll":
		tags, err := c.SinglePolling(ctx)
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Println(t)
		}
		fmt.Printf("%d tag(s)\n", len(tags))
	case "stream":
		return stream(ctx, c, count, d)
	case "stop":
		return c.StopContinuousPolling(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func stream(ctx context.Context, c *connector.Connector, count uint16, d time.Duration) error {
	s, err := c.StartContinuousPolling(ctx, count)
	if err != nil {
		return err
	}
	sctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	n := 0
	var streamErr error
	for tag, err := range s.All(sctx) {
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				streamErr = err
			}
			break
		}
		n++
		fmt.Println(tag)
	}
	// 外层 ctx 可能已被中断，停止指令使用独立超时
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	if err := c.StopContinuousPolling(stopCtx); err != nil {
		return err
	}
	fmt.Printf("%d observation(s)\n", n)
	return streamErr
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "r200probe:", err)
	os.Exit(1)
}
