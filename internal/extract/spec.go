package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Extraction 决定从匹配元素中取什么值。
type Extraction int

const (
	// ExtractText 取元素文本（含子孙节点文本）。
	ExtractText Extraction = iota
	// ExtractAttr 取元素的某个属性值（FieldSpec.Attr）。
	ExtractAttr
)

// Aggregation 决定多个匹配元素如何合并成一个值（只作用于详情页记录）。
type Aggregation int

const (
	// AggregateConcat 合并全部匹配值（", " 连接，或 BracketSuffix 形态）。
	AggregateConcat Aggregation = iota
	// AggregateFirst 只取第一个匹配。
	AggregateFirst
)

// ErrBadSelector 表示选择器无法编译（包在 *FieldError 中，可用 errors.Is 判断）。
var ErrBadSelector = errors.New("选择器无效")

// FieldSpec 是一个字段的提取规则（tagged variant）。
//
// 约束：
// - Selector 在配置加载阶段编译；非法选择器只让所属站点的尝试失败，不影响其他站点
// - Extraction==ExtractAttr 时 Attr 必须非空
// - BracketSuffix 只在 AggregateConcat 下生效：首个值为主值，其余值作为括号内限定词
type FieldSpec struct {
	Name     string
	Selector cascadia.Selector
	Raw      string // 原始选择器文本，仅用于错误信息/日志

	Extraction Extraction
	Attr       string

	Aggregation   Aggregation
	BracketSuffix bool
}

// Compile 编译一条字段规则。attr 为空表示取文本；first=true 表示只取第一个匹配。
func Compile(name, selector, attr string, first, bracket bool) (FieldSpec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return FieldSpec{}, fmt.Errorf("字段 name 不能为空")
	}
	sel, err := cascadia.Compile(strings.TrimSpace(selector))
	if err != nil {
		return FieldSpec{}, &FieldError{Field: name, Err: fmt.Errorf("%w：%q：%v", ErrBadSelector, selector, err)}
	}

	fs := FieldSpec{
		Name:        name,
		Selector:    sel,
		Raw:         selector,
		Extraction:  ExtractText,
		Aggregation: AggregateConcat,
	}
	if a := strings.TrimSpace(attr); a != "" {
		fs.Extraction = ExtractAttr
		fs.Attr = a
	}
	if first {
		fs.Aggregation = AggregateFirst
		if bracket {
			return FieldSpec{}, &FieldError{Field: name, Err: fmt.Errorf("first 与 bracket 不能同时开启")}
		}
	}
	fs.BracketSuffix = bracket
	return fs, nil
}

// FieldError 表示某个字段的提取失败（错误信息中必须带字段名）。
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("字段 %s 提取失败：%v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
