package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chris-bingham/meta-geta/internal/app/run"
	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/review"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出（写 stderr）。
//
// 设计目标：
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：长时间无条目完成时定期输出一行
// - review 提示期间不输出（屏障时 ticker 已停止，review 结束后为写入阶段重新计数）
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int
	pending int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(root string, cfg config.Config) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] metageta run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", root)
	fmt.Fprintf(p.w, "  config: %s\n", cfg.File)
	fmt.Fprintf(p.w, "  sites: %s\n", siteNames(cfg.Sources))
	fmt.Fprintf(p.w, "  concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(p.w, "  extensions: %s\n", strings.Join(cfg.Extensions, ","))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(cfg.ProxyURL))
	fmt.Fprintf(p.w, "  artwork_dir: %s\n", cfg.ArtworkDir)
	fmt.Fprintf(p.w, "  cache: %s\n", orOff(cfg.CacheDir))
	fmt.Fprintf(p.w, "  report: %s\n", orOff(cfg.ReportPath))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d size=%s (%s)\n",
			intField(fields, "files"), humanize.IBytes(uint64(max(int64Field(fields, "bytes"), 0))), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: attempts=%d sources=%d unsupported=%d (%s)\n",
			intField(fields, "attempts"), intField(fields, "sources"), intField(fields, "unsupported"), formatShortDuration(dur),
		)
	case "fanout":
		p.resetLocked(intField(fields, "workers"), intField(fields, "total"))
		fmt.Fprintf(p.w, "搜索: workers=%d attempts=%d\n\n", p.workers, p.total)
	case "barrier":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "\n搜索完成: ok=%d fail=%d pending_review=%d (%s)\n",
			p.ok, p.fail, intField(fields, "pending"), formatShortDuration(dur),
		)
	case "review":
		selected := intField(fields, "selected")
		fmt.Fprintf(p.w, "确认: items=%d selected=%d (%s)\n",
			intField(fields, "items"), selected, formatShortDuration(dur),
		)
		p.resetLocked(p.workers, selected)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

// resetLocked 为新一段（搜索 / review 写入）重置计数，并按需启动 ticker。
func (p *progressUI) resetLocked(workers, total int) {
	p.workers = workers
	p.total = total
	p.done, p.ok, p.fail, p.pending = 0, 0, 0, 0
	if p.total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusWritten, domain.StatusSelected:
		p.ok++
		status = "OK"
	case domain.StatusFailed:
		p.fail++
		status = "FAIL"
	case domain.StatusPendingReview:
		p.pending++
		status = "REVIEW"
	case domain.StatusNoResult:
		status = "NONE"
	}

	label := res.File
	if res.Source != "" {
		label += " @" + res.Source
	}

	switch res.Status {
	case domain.StatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s (%s)\n",
			idx, total, label, status, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	case domain.StatusNoResult:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, label, status, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s similarity=%d%% %s (%s)\n",
			idx, total, label, status, review.Percent(res.Similarity), truncate(res.Candidate, 80), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// printProgressLocked 输出一行 keepalive 进度（调用方持有 p.mu）。
func (p *progressUI) printProgressLocked() {
	active := min(p.workers, p.total-p.done)
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d review=%d active=%d elapsed=%s\n",
		p.done, p.total, p.ok, p.fail, p.pending, active, formatElapsed(time.Since(p.startedAt)),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) stopTickerLocked() {
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func siteNames(srcs []config.Source) string {
	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name)
	}
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, " | ")
}

func orOff(s string) string {
	if strings.TrimSpace(s) == "" {
		return "off"
	}
	return s
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	return int(int64Field(fields, key))
}

func int64Field(fields map[string]any, key string) int64 {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	default:
		return 0
	}
}
