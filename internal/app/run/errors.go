package run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chris-bingham/meta-geta/internal/extract"
	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/resolve"
	"github.com/chris-bingham/meta-geta/internal/tagger"
)

// humanizeFetchError 把抓取错误转成可操作的提示（限流/代理是最常见问题）。
func humanizeFetchError(source string, err error) string {
	if err == nil {
		return source + " 抓取失败"
	}

	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		loc := strings.TrimSpace(hs.Location)
		switch hs.StatusCode {
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议降低 concurrency、调低 rate_per_second 或配置 proxy.url。", source, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（页面不存在或 search_path 配置有误）。", source)
		default:
			if loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", source, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", source, hs.StatusCode)
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 抓取已取消。", source)
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理，或降低并发后重试。", source)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。建议配置 proxy.url 或稍后重试。", source)
	}
	return fmt.Sprintf("%s 抓取失败：%v", source, err)
}

func humanizeParseError(source string, err error) string {
	if err == nil {
		return source + " 解析失败"
	}
	var fe *extract.FieldError
	if errors.As(err, &fe) && errors.Is(err, extract.ErrBadSelector) {
		return fmt.Sprintf("%s 的字段 %s 选择器无效（修正配置中的 selector）：%v", source, fe.Field, fe.Err)
	}
	if errors.As(err, &fe) {
		return fmt.Sprintf("%s 缺少字段 %s（站点结构可能变化，检查选择器配置）：%v", source, fe.Field, fe.Err)
	}
	return fmt.Sprintf("%s 解析失败（站点结构可能变化或返回了非预期页面）：%v", source, err)
}

// humanizeResolveError 按 resolve 阶段给出提示。
func humanizeResolveError(source string, err error) string {
	var re *resolve.Error
	if !errors.As(err, &re) {
		return humanizeFetchError(source, err)
	}
	switch re.Stage {
	case resolve.StageParse:
		return humanizeParseError(source, re.Err)
	case resolve.StageArtwork:
		if errors.Is(err, resolve.ErrNoArtwork) {
			return fmt.Sprintf("%s 详情页没有封面地址。", source)
		}
		if fsx.IsPathTypeConflict(err) {
			return fmt.Sprintf("封面临时文件路径被占用（检查 artwork_dir）：%v", re.Err)
		}
		return fmt.Sprintf("%s 封面下载失败：%s", source, humanizeFetchError(source, re.Err))
	case resolve.StageWrite:
		if errors.Is(err, tagger.ErrUnsupportedFormat) {
			return fmt.Sprintf("不支持写入该格式：%v", re.Err)
		}
		if fsx.IsCrossDevice(err) {
			return fmt.Sprintf("写入标签失败：临时文件与音频不在同一文件系统（EXDEV），音频未改动：%v", re.Err)
		}
		return fmt.Sprintf("写入标签失败：%v", re.Err)
	default:
		return humanizeFetchError(source, re.Err)
	}
}
