package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const (
	// StageSearch 表示抓取搜索页。
	StageSearch = "search"
	// StageDetail 表示抓取详情页。
	StageDetail = "detail"
	// StageArtwork 表示下载封面。
	StageArtwork = "artwork"
)

// maxBodyBytes 限制单个页面/图片的读取上限。
const maxBodyBytes = 32 << 20

// Fetcher 负责“按 URL 取回字节”。不做缓存、不做限速（由上层统一控制），
// 重试由 httpx.Transport 负责。
type Fetcher struct {
	Client *http.Client
}

// Fetch 发起 GET 请求并返回响应体。非 2xx 返回 *HTTPStatusError。
func (f Fetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	if f.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodyBytes {
		return nil, fmt.Errorf("响应体超过上限 %d 字节：%s", maxBodyBytes, u)
	}
	return b, nil
}

// Error 是站点抓取阶段的可追溯错误。
// 上层据此把失败归类为 fetch_failed / artwork_failed，并写入 report。
type Error struct {
	Source string
	Stage  string // StageSearch / StageDetail / StageArtwork
	URL    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source=%s stage=%s url=%s: %v", e.Source, e.Stage, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
