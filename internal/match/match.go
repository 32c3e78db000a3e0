// Package match 对结果列表打分并做置信度判定。
package match

import (
	"strings"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/extract"
	"github.com/chris-bingham/meta-geta/internal/query"
)

// Threshold 是自动接受的最低相似度（>= 接受，< 进入人工确认）。
// 该值与平局规则都属于兼容性契约，不是可调参数。
const Threshold = 0.7

// Scorer 计算候选机器串与查询串的相似度，返回值必须落在 [0,1]。
type Scorer func(machine, query string) float64

// DiceScorer 返回基于字符 bigram 的 Sørensen–Dice 打分器。
//
// 规则：
// - 比较前去掉所有空白
// - 完全相同 => 1；任一方不足 2 个字符 => 0
// - caseInsensitive=false 时区分大小写（与历史打分结果保持一致）
func DiceScorer(caseInsensitive bool) Scorer {
	metric := &metrics.SorensenDice{
		CaseSensitive: !caseInsensitive,
		NgramSize:     2,
	}
	return func(machine, q string) float64 {
		a, b := stripSpace(machine), stripSpace(q)
		if caseInsensitive {
			a, b = strings.ToLower(a), strings.ToLower(b)
		}
		if a == b {
			return 1
		}
		if len([]rune(a)) < 2 || len([]rune(b)) < 2 {
			return 0
		}
		return clamp(strutil.Similarity(a, b, metric))
	}
}

// Matcher 对单次 (file, source) 尝试的结果行打分。
type Matcher struct {
	Score Scorer
}

// New 返回使用 DiceScorer 的 Matcher。
func New(caseInsensitive bool) Matcher {
	return Matcher{Score: DiceScorer(caseInsensitive)}
}

// MachineForm 把人类可读的匹配串转成与查询同风格的 token 串（空格 -> '+'）。
func MachineForm(human string) string {
	return strings.Join(strings.Split(human, " "), query.JoinToken)
}

// Match 给每一行打分并按阈值给出结论。
//
// - 没有任何行 => NoResult
// - closest 只在严格大于时更新（平局时先出现者胜出）
// - closest < Threshold => PendingReview（携带全部候选）
// - closest 的引用为空 => NoResult（没有可解析的详情页）
func (m Matcher) Match(q, fileName string, sourceIndex int, rows []extract.Row) domain.Outcome {
	if len(rows) == 0 {
		return domain.NoResult()
	}
	score := m.Score
	if score == nil {
		score = DiceScorer(false)
	}

	cands := make([]domain.Candidate, 0, len(rows))
	closest := -1
	best := -1.0
	for i, r := range rows {
		human := r.MatchString()
		sim := clamp(score(MachineForm(human), q))
		cands = append(cands, domain.Candidate{Name: human, Similarity: sim, Ref: r.Href})
		if sim > best {
			best = sim
			closest = i
		}
	}

	if best < Threshold {
		return domain.PendingReview(domain.ReviewItem{
			FileName:    fileName,
			SourceIndex: sourceIndex,
			Candidates:  cands,
		}, cands[closest])
	}
	if strings.TrimSpace(cands[closest].Ref) == "" {
		return domain.NoResult()
	}
	return domain.Accepted(cands[closest])
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
