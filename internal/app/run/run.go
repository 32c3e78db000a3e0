package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chris-bingham/meta-geta/internal/app"
	"github.com/chris-bingham/meta-geta/internal/app/planner"
	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/extract"
	"github.com/chris-bingham/meta-geta/internal/logging"
	"github.com/chris-bingham/meta-geta/internal/match"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/query"
	"github.com/chris-bingham/meta-geta/internal/resolve"
	"github.com/chris-bingham/meta-geta/internal/review"
	"github.com/chris-bingham/meta-geta/internal/scan"
	"github.com/chris-bingham/meta-geta/internal/tagger"
)

// ErrListing 表示根目录无法列出（CLI 据此以非零码退出）。
var ErrListing = errors.New("无法列出目录")

// PageFetcher 取回搜索页（provider.Fetcher 满足该接口）。
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver 解析详情页并写入文件（*resolve.Resolver 满足该接口）。
type Resolver interface {
	Resolve(ctx context.Context, site *provider.Site, ref string, file domain.AudioFile) (resolve.Result, error)
}

// Deps 是一次 run 需要的全部依赖（由 CLI 组装，测试可替换任意一项）。
type Deps struct {
	Root     string
	Config   config.Config
	Registry provider.Registry

	Fetcher  PageFetcher
	Resolver Resolver
	Matcher  match.Matcher

	// Prompter 为 nil 时所有 review item 视为跳过（非交互运行）。
	Prompter    review.Prompter
	ReviewOut   io.Writer
	ReviewTable bool

	Logger   *slog.Logger
	Observer Observer
}

// slot 是单个 attempt 的结果槽：只由负责该 attempt 的 goroutine 写入，屏障之后才被读取。
type slot struct {
	res    domain.ItemResult
	review *domain.ReviewItem
}

// Execute 执行一次完整的 run，返回对外稳定的 RunReport。
//
// 顺序保证：
// 1) 每个 (file, source) attempt 内部串行：限速 -> 抓搜索页 -> 提取 -> 匹配 -> {写入 | 收集 review}
// 2) 所有 attempt 结束（g.Wait）之后才构造 review 队列
// 3) review 逐条串行；选中的条目再以有界并发写入
//
// 任何 attempt 的失败都只记录在 report 里，不会取消其他 attempt。
// 只有根目录无法列出时返回 ErrListing（report 里带一条合成失败项）。
func Execute(ctx context.Context, d Deps) (domain.RunReport, error) {
	started := time.Now().UTC()
	log := d.logger()
	obs := d.Observer

	if obs != nil {
		obs.OnStart(d.Root, d.Config)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      d.Root,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 64),
	}

	scanStarted := time.Now()
	files, err := scan.ScanAudio(d.Root, d.Config.Extensions)
	if err != nil {
		log.Error("扫描目录失败", "path", d.Root, "error", err)
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr, fmt.Errorf("%w：%v", ErrListing, err)
	}
	rr.Summary.Files = len(files)
	log.Info("发现音频文件", "count", len(files))
	if obs != nil {
		var total int64
		for _, f := range files {
			total += f.Size
		}
		obs.OnPhaseDone("scan", map[string]any{"files": len(files), "bytes": total}, time.Since(scanStarted))
	}

	planStarted := time.Now()
	norm := query.New(d.Config.StripTokens)
	plan := planner.Build(files, d.Registry.Sites(), norm, tagger.Supported)
	for _, idx := range plan.Unsupported {
		rr.Items = append(rr.Items, unsupportedItem(files[idx]))
		log.Warn("不支持写入该格式，已跳过", "file", files[idx].Name, "ext", files[idx].Ext)
	}
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"attempts":    len(plan.Attempts),
			"sources":     d.Registry.Len(),
			"unsupported": len(plan.Unsupported),
		}, time.Since(planStarted))
	}

	workers := clampWorkers(d.Config.Concurrency)
	locks := app.NewFileLocks(len(files))
	slots := make([]slot, len(plan.Attempts))

	if obs != nil {
		obs.OnPhaseDone("fanout", map[string]any{"workers": workers, "total": len(plan.Attempts)}, 0)
	}

	fanStarted := time.Now()
	var done atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range plan.Attempts {
		g.Go(func() error {
			one := time.Now()
			slots[i] = d.runAttempt(ctx, plan.Attempts[i], files, locks)
			if obs != nil {
				obs.OnItemDone(int(done.Add(1)), len(plan.Attempts), slots[i].res, time.Since(one))
			}
			return nil
		})
	}
	_ = g.Wait()

	queue := collectReview(slots)
	if obs != nil {
		obs.OnPhaseDone("barrier", map[string]any{"pending": queue.Len()}, time.Since(fanStarted))
	}

	if queue.Len() > 0 {
		d.resolveReview(ctx, queue, plan.Attempts, slots, files, locks, workers)
	}

	for i := range slots {
		rr.Items = append(rr.Items, slots[i].res)
	}
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr, nil
}

// runAttempt 处理单个 (file, source)。返回值写入该 attempt 独占的结果槽。
func (d Deps) runAttempt(ctx context.Context, a domain.Attempt, files []domain.AudioFile, locks *app.FileLocks) slot {
	file := files[a.FileIdx]
	site, ok := d.Registry.At(a.SourceIndex)
	if !ok {
		return slot{res: failed(file.Name, "", domain.ErrCodeFetchFailed, fmt.Sprintf("非法 source index：%d", a.SourceIndex))}
	}
	log := d.logger().With("file", file.Name, "source", site.Name)
	res := domain.ItemResult{File: file.Name, Source: site.Name}

	if site.FieldErr != nil {
		log.Warn("站点选择器无效，跳过抓取", "error", site.FieldErr)
		return slot{res: fill(res, domain.ErrCodeParseFailed, humanizeParseError(site.Name, site.FieldErr))}
	}
	if err := site.Wait(ctx); err != nil {
		return slot{res: fill(res, domain.ErrCodeFetchFailed, err.Error())}
	}
	html, err := d.Fetcher.Fetch(ctx, a.SearchURL)
	if err != nil {
		pe := &provider.Error{Source: site.Name, Stage: provider.StageSearch, URL: a.SearchURL, Err: err}
		log.Warn("抓取搜索页失败", "url", a.SearchURL, "error", pe)
		return slot{res: fill(res, domain.ErrCodeFetchFailed, humanizeFetchError(site.Name, err))}
	}

	rows, err := extract.Listing(html, site.ResultFields)
	if err != nil {
		log.Warn("解析搜索页失败", "url", a.SearchURL, "error", err)
		return slot{res: fill(res, domain.ErrCodeParseFailed, humanizeParseError(site.Name, err))}
	}

	out := d.Matcher.Match(a.Query, file.Name, site.Index, rows)
	res.Similarity = out.Closest.Similarity
	res.Candidate = out.Closest.Name

	switch out.Kind {
	case domain.OutcomeNoResult:
		log.Info("没有搜索结果", "url", a.SearchURL, "rows", len(rows))
		res.Status = domain.StatusNoResult
		return slot{res: res}

	case domain.OutcomePendingReview:
		log.Info("相似度低于阈值，等待人工确认", "similarity", out.Closest.Similarity, "closest", out.Closest.Name)
		res.Status = domain.StatusPendingReview
		item := out.Review
		return slot{res: res, review: &item}

	default:
		log.Info("自动匹配", "similarity", out.Closest.Similarity, "candidate", out.Closest.Name)
		res = d.write(ctx, site, out.Ref, file, a.FileIdx, locks, res)
		if res.Status == "" {
			res.Status = domain.StatusWritten
		}
		return slot{res: res}
	}
}

// write 在文件锁内执行 resolve；失败时把错误归类写入 res。
func (d Deps) write(ctx context.Context, site *provider.Site, ref string, file domain.AudioFile, fileIdx int, locks *app.FileLocks, res domain.ItemResult) domain.ItemResult {
	unlock := locks.Lock(fileIdx)
	defer unlock()

	log := d.logger().With("file", file.Name, "source", site.Name)
	r, err := d.Resolver.Resolve(ctx, site, ref, file)
	res.DetailURL = r.DetailURL
	if err != nil {
		log.Error("写入元数据失败", "url", r.DetailURL, "error", err)
		return fill(res, resolve.ErrorCode(err), humanizeResolveError(site.Name, err))
	}
	log.Info("元数据已写入", "url", r.DetailURL, "fields", r.Fields, "cached", r.Cached)
	return res
}

func collectReview(slots []slot) *review.Queue {
	items := make([]domain.ReviewItem, 0)
	for i := range slots {
		if slots[i].review != nil {
			items = append(items, *slots[i].review)
		}
	}
	return review.NewQueue(items)
}

// resolveReview 串行确认全部 review item，再以有界并发写入被选中的条目。
func (d Deps) resolveReview(ctx context.Context, queue *review.Queue, attempts []domain.Attempt, slots []slot, files []domain.AudioFile, locks *app.FileLocks, workers int) {
	log := d.logger()
	obs := d.Observer

	// 队列顺序与 slots 中带 review 的条目顺序一致。
	owners := make([]int, 0, queue.Len())
	for i := range slots {
		if slots[i].review != nil {
			owners = append(owners, i)
		}
	}

	reviewStarted := time.Now()
	items := queue.Items()
	if d.Prompter != nil {
		queue.Table = d.ReviewTable
		queue.Logger = log.With("component", "review")
		out := d.ReviewOut
		if out == nil {
			out = io.Discard
		}
		var err error
		items, err = queue.Resolve(ctx, d.Prompter, out)
		if err != nil {
			log.Warn("人工确认中断", "error", err)
		}
	} else {
		log.Info("非交互运行，review item 全部跳过", "count", queue.Len())
	}

	selected := make([]int, 0, len(items))
	for qi := range items {
		si := owners[qi]
		c, ok := items[qi].SelectedCandidate()
		if !ok {
			slots[si].res.Status = domain.StatusSkipped
			continue
		}
		slots[si].res.Candidate = c.Name
		slots[si].res.Similarity = c.Similarity
		slots[si].review = &items[qi]
		selected = append(selected, si)
	}
	if obs != nil {
		obs.OnPhaseDone("review", map[string]any{
			"items":    len(items),
			"selected": len(selected),
		}, time.Since(reviewStarted))
	}

	var mu sync.Mutex
	var done int
	var g errgroup.Group
	g.SetLimit(workers)
	for _, si := range selected {
		g.Go(func() error {
			one := time.Now()
			a := attempts[si]
			site, _ := d.Registry.At(a.SourceIndex)
			c, _ := slots[si].review.SelectedCandidate()

			res := d.write(ctx, site, c.Ref, files[a.FileIdx], a.FileIdx, locks, slots[si].res)
			if res.Status != domain.StatusFailed {
				res.Status = domain.StatusSelected
			}
			slots[si].res = res

			if obs != nil {
				mu.Lock()
				done++
				n := done
				mu.Unlock()
				obs.OnItemDone(n, len(selected), res, time.Since(one))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func clampWorkers(n int) int {
	if n < 1 {
		return config.DefaultConcurrency
	}
	return n
}

func fill(res domain.ItemResult, code, msg string) domain.ItemResult {
	res.Status = domain.StatusFailed
	res.ErrorCode = code
	res.ErrorMsg = msg
	return res
}

func failed(file, source, code, msg string) domain.ItemResult {
	return fill(domain.ItemResult{File: file, Source: source}, code, msg)
}

func unsupportedItem(f domain.AudioFile) domain.ItemResult {
	return failed(f.Name, "", domain.ErrCodeWriteFailed, fmt.Sprintf("不支持写入 %s 格式的标签", strings.TrimPrefix(f.Ext, ".")))
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{Status: domain.StatusFailed, ErrorCode: code, ErrorMsg: msg}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.Discard()
}
