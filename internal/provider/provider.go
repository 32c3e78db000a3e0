package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/query"
)

// QueryPlaceholder 在 search_path 中标记查询串的位置；缺省时查询串追加在末尾。
const QueryPlaceholder = "{query}"

// Site 是运行期的站点：配置 + 下标 + 限速器。
//
// 约束：
// - Index 与配置顺序一致（review item 用它回查站点）
// - Site 只负责“定位页面”，不解析 HTML（解析在 extract）
type Site struct {
	Index int
	config.Source

	limiter *rate.Limiter // nil 表示不限速
}

// NewSite 由配置构造站点。RatePerSecond<=0 时不限速。
func NewSite(index int, src config.Source) *Site {
	s := &Site{Index: index, Source: src}
	if src.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(src.RatePerSecond), 1)
	}
	return s
}

// Wait 阻塞到该站点允许下一次请求（或 ctx 结束）。
func (s *Site) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// SearchURL 拼出搜索页 URL。
//
// 规则：
// - 查询串按 '+' 切成 token，每个 token 做 QueryEscape，再用 '+' 连回去
// - search_path 含 {query} 时替换，否则追加在末尾
func (s *Site) SearchURL(q string) string {
	tokens := query.Tokens(q)
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = url.QueryEscape(t)
	}
	eq := strings.Join(escaped, query.JoinToken)

	path := s.SearchPath
	if strings.Contains(path, QueryPlaceholder) {
		path = strings.ReplaceAll(path, QueryPlaceholder, eq)
	} else {
		path += eq
	}
	return strings.TrimRight(s.BaseURL, "/") + ensureLeadingSlash(path)
}

// ResolveURL 把页面里的相对引用（详情页 href、图片 src）拼成绝对 URL。
//
// 规则：
// - 绝对 URL 原样返回；协议相对（//host/..）跟随 base 的协议
// - 其他引用直接接在 base_url 后面（与 SearchURL 相同的拼接，base_url 的路径保留）
func (s *Site) ResolveURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("站点 %s：引用为空", s.Name)
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("站点 %s：引用 %q 无效：%w", s.Name, ref, err)
	}
	if ru.IsAbs() {
		return ru.String(), nil
	}
	if strings.HasPrefix(ref, "//") {
		bu, err := url.Parse(s.BaseURL)
		if err != nil {
			return "", fmt.Errorf("站点 %s：base_url 无效：%w", s.Name, err)
		}
		return bu.Scheme + ":" + ref, nil
	}
	return strings.TrimRight(s.BaseURL, "/") + ensureLeadingSlash(ref), nil
}

func ensureLeadingSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasPrefix(p, "?") {
		return p
	}
	return "/" + p
}
