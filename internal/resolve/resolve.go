// Package resolve 把一次被接受（或被人工选中）的匹配落实到文件上：
// 抓详情页 -> 提取记录 -> 下载封面 -> 写标签 -> 删除封面临时文件。
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris-bingham/meta-geta/internal/artwork"
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/extract"
	"github.com/chris-bingham/meta-geta/internal/infra/cache"
	"github.com/chris-bingham/meta-geta/internal/logging"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/tagger"
)

const (
	StageDetail  = "detail"
	StageParse   = "parse"
	StageArtwork = "artwork"
	StageWrite   = "write"
)

// ErrNoArtwork 表示详情页记录里没有封面引用（该次写入视为失败）。
var ErrNoArtwork = errors.New("详情页没有封面")

// Error 是 Resolve 的阶段化错误；上层据 Stage 归类 report 错误码。
type Error struct {
	Source string
	Stage  string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s url=%s: %v", e.Source, e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode 把 Resolve 返回的错误映射为 report 错误码。
func ErrorCode(err error) string {
	var re *Error
	if errors.As(err, &re) {
		switch re.Stage {
		case StageParse:
			return domain.ErrCodeParseFailed
		case StageArtwork:
			return domain.ErrCodeArtworkFailed
		case StageWrite:
			return domain.ErrCodeWriteFailed
		}
	}
	return domain.ErrCodeFetchFailed
}

// Fetcher 按 URL 取回页面。
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ArtworkStore 下载封面并落盘为临时文件。
type ArtworkStore interface {
	Acquire(ctx context.Context, url string) (*artwork.Handle, error)
}

// WriteFunc 写标签（默认 tagger.Write）。
type WriteFunc func(path string, fields map[string]string, pic *tagger.Picture) error

// Resolver 组合详情页抓取、封面与标签写入。零值不可用：Fetcher 与 Artwork 必填。
type Resolver struct {
	Fetcher Fetcher
	Artwork ArtworkStore
	Write   WriteFunc
	Cache   cache.Store
	Logger  *slog.Logger
}

// Result 描述一次成功的写入。
type Result struct {
	DetailURL string
	Fields    int
	ArtSize   int64
	Cached    bool
}

// Resolve 对 file 执行一次完整的解析与写入。
//
// 约束：
// - 封面临时文件在任何返回路径上都会被删除
// - 详情页记录缓存只在提取成功后写入；缓存读写失败不影响结果
func (r *Resolver) Resolve(ctx context.Context, site *provider.Site, ref string, file domain.AudioFile) (Result, error) {
	log := r.logger().With("file", file.Name, "source", site.Name)

	detailURL, err := site.ResolveURL(ref)
	if err != nil {
		return Result{}, &Error{Source: site.Name, Stage: StageDetail, URL: ref, Err: err}
	}
	res := Result{DetailURL: detailURL}

	rec, cached, err := r.record(ctx, site, detailURL, log)
	if err != nil {
		return res, err
	}
	res.Cached = cached

	artRef, fields := rec.Split()
	res.Fields = len(fields)
	if artRef == "" {
		return res, &Error{Source: site.Name, Stage: StageArtwork, URL: detailURL, Err: ErrNoArtwork}
	}
	artURL, err := site.ResolveURL(artRef)
	if err != nil {
		return res, &Error{Source: site.Name, Stage: StageArtwork, URL: artRef, Err: err}
	}

	h, err := r.Artwork.Acquire(ctx, artURL)
	if err != nil {
		return res, &Error{Source: site.Name, Stage: StageArtwork, URL: artURL, Err: err}
	}
	defer func() {
		if e := h.Release(); e != nil {
			log.Warn("删除封面临时文件失败", "path", h.Path, "error", e)
		}
	}()
	res.ArtSize = h.Size

	data, err := h.Data()
	if err != nil {
		return res, &Error{Source: site.Name, Stage: StageArtwork, URL: artURL, Err: err}
	}

	write := r.Write
	if write == nil {
		write = tagger.Write
	}
	if err := write(file.AbsPath, fields, &tagger.Picture{Data: data, MIME: h.MIME}); err != nil {
		return res, &Error{Source: site.Name, Stage: StageWrite, URL: detailURL, Err: err}
	}

	if log.Enabled(ctx, slog.LevelDebug) {
		if s, e := tagger.ReadBack(file.AbsPath); e == nil {
			log.Debug("标签已写入", "format", s.Format, "tags", s.Fields(), "picture", s.HasPicture)
		}
	}
	return res, nil
}

func (r *Resolver) record(ctx context.Context, site *provider.Site, detailURL string, log *slog.Logger) (domain.SongMetadata, bool, error) {
	if r.Cache.Enabled() {
		rec, ok, err := r.Cache.ReadRecord(site.Name, detailURL)
		if err != nil {
			log.Warn("读取详情缓存失败", "url", detailURL, "error", err)
		} else if ok {
			return rec, true, nil
		}
	}

	if err := site.Wait(ctx); err != nil {
		return nil, false, &Error{Source: site.Name, Stage: StageDetail, URL: detailURL, Err: err}
	}
	html, err := r.Fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, false, &Error{
			Source: site.Name,
			Stage:  StageDetail,
			URL:    detailURL,
			Err:    &provider.Error{Source: site.Name, Stage: provider.StageDetail, URL: detailURL, Err: err},
		}
	}

	rec, err := extract.Record(html, site.TrackFields)
	if err != nil {
		return nil, false, &Error{Source: site.Name, Stage: StageParse, URL: detailURL, Err: err}
	}

	if r.Cache.Enabled() {
		if err := r.Cache.WriteRecord(site.Name, detailURL, rec); err != nil {
			log.Warn("写入详情缓存失败", "url", detailURL, "error", err)
		}
	}
	return rec, false, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.Discard()
}
