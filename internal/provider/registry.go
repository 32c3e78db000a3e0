package provider

import (
	"fmt"
	"strings"

	"github.com/chris-bingham/meta-geta/internal/config"
)

// Registry 是站点的只读注册表（按 source index 索引；name 唯一）。
type Registry struct {
	sites []*Site
}

func NewRegistry(sources []config.Source) (Registry, error) {
	sites := make([]*Site, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name == "" {
			return Registry{}, fmt.Errorf("sites[%d]：name 不能为空", i)
		}
		if _, ok := seen[name]; ok {
			return Registry{}, fmt.Errorf("重复的站点：%q", name)
		}
		s := NewSite(i, src)
		sites = append(sites, s)
		seen[name] = struct{}{}
	}
	return Registry{sites: sites}, nil
}

// Sites 按配置顺序返回全部站点。
func (r Registry) Sites() []*Site { return r.sites }

func (r Registry) Len() int { return len(r.sites) }

// At 按 source index 取站点。
func (r Registry) At(i int) (*Site, bool) {
	if i < 0 || i >= len(r.sites) {
		return nil, false
	}
	return r.sites[i], true
}

