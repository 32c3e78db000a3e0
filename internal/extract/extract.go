package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/chris-bingham/meta-geta/internal/domain"
)

// 结果列表页的固定字段名。
const (
	FieldArtist   = "artist"
	FieldTitle    = "title"
	FieldSubtitle = "subtitle"
	FieldHref     = "href"
)

// ErrNoField 表示 first 模式下需要的元素/属性不存在。
var ErrNoField = errors.New("没有匹配的元素或属性")

// Row 是结果列表中对齐后的一行；缺失字段为空串。
type Row struct {
	Artist   string
	Title    string
	Subtitle string
	Href     string
}

// MatchString 返回人类可读的匹配串："{artist} - {title}"，subtitle 非空时追加 " ({subtitle})"。
func (r Row) MatchString() string {
	s := r.Artist + " - " + r.Title
	if r.Subtitle != "" {
		s += " (" + r.Subtitle + ")"
	}
	return s
}

// Listing 把结果列表页解析为对齐的行。
//
// 规则：
// - 每个字段取全部匹配（Aggregation 在列表页不生效）
// - 行数 = title 的匹配数；title 没有匹配时返回空切片（NoResult 由上层判定）
// - 其他字段按下标对齐，缺失为 ""
func Listing(html []byte, specs []FieldSpec) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析结果页失败：%w", err)
	}

	values := make(map[string][]string, len(specs))
	for _, fs := range specs {
		values[fs.Name] = allValues(doc.FindMatcher(fs.Selector), fs)
	}

	titles := values[FieldTitle]
	rows := make([]Row, 0, len(titles))
	for i := range titles {
		rows = append(rows, Row{
			Artist:   at(values[FieldArtist], i),
			Title:    titles[i],
			Subtitle: at(values[FieldSubtitle], i),
			Href:     at(values[FieldHref], i),
		})
	}
	return rows, nil
}

// Record 把详情页解析为元数据记录（按字段名直接取值，不做列表对齐）。
//
// 任一字段失败即返回 *FieldError（整条记录作废，由上层把该次尝试标记为失败）。
func Record(html []byte, specs []FieldSpec) (domain.SongMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析详情页失败：%w", err)
	}

	out := make(domain.SongMetadata, len(specs))
	for _, fs := range specs {
		sel := doc.FindMatcher(fs.Selector)

		var v string
		switch fs.Aggregation {
		case AggregateFirst:
			v, err = firstValue(sel, fs)
			if err != nil {
				return nil, &FieldError{Field: fs.Name, Err: err}
			}
		default:
			v = joinValues(allValues(sel, fs), fs.BracketSuffix)
		}
		out[fs.Name] = v
	}
	return out, nil
}

func allValues(sel *goquery.Selection, fs FieldSpec) []string {
	vals := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		vals = append(vals, value(s, fs))
	})
	return vals
}

func firstValue(sel *goquery.Selection, fs FieldSpec) (string, error) {
	first := sel.First()
	if fs.Extraction == ExtractAttr {
		if first.Length() == 0 {
			return "", fmt.Errorf("%w：selector=%q", ErrNoField, fs.Raw)
		}
		v, ok := first.Attr(fs.Attr)
		if !ok {
			return "", fmt.Errorf("%w：selector=%q attr=%q", ErrNoField, fs.Raw, fs.Attr)
		}
		return strings.TrimSpace(v), nil
	}
	return normSpace(first.Text()), nil
}

func value(s *goquery.Selection, fs FieldSpec) string {
	if fs.Extraction == ExtractAttr {
		v, _ := s.Attr(fs.Attr)
		return strings.TrimSpace(v)
	}
	return normSpace(s.Text())
}

// joinValues：bracket=false 用 ", " 连接；bracket=true 输出 "v0 (v1 v2 …)"，只有一个值时不加括号。
func joinValues(vals []string, bracket bool) string {
	if !bracket {
		return strings.Join(vals, ", ")
	}
	switch len(vals) {
	case 0:
		return ""
	case 1:
		return vals[0]
	}
	return vals[0] + " (" + strings.Join(vals[1:], " ") + ")"
}

func at(vals []string, i int) string {
	if i < 0 || i >= len(vals) {
		return ""
	}
	return vals[i]
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
