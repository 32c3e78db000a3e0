package planner

import (
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/query"
)

// Plan 是一次 run 的确定性工作清单（不做任何网络与写入）。
type Plan struct {
	// Attempts 按 (文件顺序, 站点顺序) 排列；下标即结果槽位置。
	Attempts []domain.Attempt
	// Unsupported 是扩展名没有标签写入器的文件下标（不会发起任何抓取）。
	Unsupported []int
}

// Build 为每个可写文件 × 每个站点生成一个 Attempt。
//
// - 查询串对同一文件只计算一次，所有站点共享
// - writable 为 nil 时视为所有文件可写
func Build(files []domain.AudioFile, sites []*provider.Site, n query.Normalizer, writable func(ext string) bool) Plan {
	p := Plan{Attempts: make([]domain.Attempt, 0, len(files)*len(sites))}
	for i := range files {
		if writable != nil && !writable(files[i].Ext) {
			p.Unsupported = append(p.Unsupported, i)
			continue
		}
		q := n.Normalize(files[i].Name)
		for _, s := range sites {
			p.Attempts = append(p.Attempts, domain.Attempt{
				FileIdx:     i,
				SourceIndex: s.Index,
				Query:       q,
				SearchURL:   s.SearchURL(q),
			})
		}
	}
	return p
}

