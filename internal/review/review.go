// Package review 在全部自动匹配结束后，逐条向操作者确认低置信度的匹配。
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/logging"
)

const (
	// MaxPromptAttempts 是单条 item 的最多输入次数；用尽视为跳过。
	MaxPromptAttempts = 10
	// SkipToken 是跳过当前 item 的输入。
	SkipToken = "s"
	// PromptText 是每次读取输入前的提示。
	PromptText = "Enter the corresponding number, or s to skip: "
)

// Prompter 展示提示并读取一行输入。输入耗尽时返回 io.EOF。
type Prompter interface {
	Prompt(message string) (string, error)
}

// Queue 是 review item 的有序集合。
//
// 约束：
// - 只能在 fan-out 屏障之后构造（items 来自各 attempt 的结果槽）
// - Resolve 严格串行、按队列顺序处理；每个 item 的 Selected 最多被设置一次
type Queue struct {
	items []domain.ReviewItem

	// Table=true 时用表格展示候选（终端输出）；否则逐行输出。
	Table  bool
	Logger *slog.Logger
}

// NewQueue 复制 items 构造队列。
func NewQueue(items []domain.ReviewItem) *Queue {
	cp := make([]domain.ReviewItem, len(items))
	copy(cp, items)
	return &Queue{items: cp}
}

func (q *Queue) Len() int { return len(q.items) }

// Items 返回当前队列（Resolve 之后带有选择结果）。
func (q *Queue) Items() []domain.ReviewItem { return q.items }

// Resolve 逐条提示并记录选择，返回处理后的全部 item（Selected=nil 表示跳过）。
//
// 规则：
// - 输入 "s" 跳过；[1, len] 内的整数选中对应候选
// - 其他输入（非数字、0、负数、越界）打印 "<input> is not valid, please try again." 后重新提示
// - 连续 MaxPromptAttempts 次无效输入视为跳过
// - Prompter 返回 io.EOF：当前及剩余 item 全部跳过
func (q *Queue) Resolve(ctx context.Context, p Prompter, out io.Writer) ([]domain.ReviewItem, error) {
	log := q.logger()
	for i := range q.items {
		if err := ctx.Err(); err != nil {
			return q.items, err
		}
		it := &q.items[i]

		fmt.Fprint(out, q.render(*it))

		idx, err := ask(p, out, len(it.Candidates))
		if errors.Is(err, io.EOF) {
			log.Warn("输入已结束，剩余 review item 全部跳过", "remaining", len(q.items)-i)
			return q.items, nil
		}
		if err != nil {
			return q.items, err
		}

		switch {
		case idx < 0:
			fmt.Fprintln(out, "\nskipping")
		case it.Select(idx):
			c := it.Candidates[idx]
			fmt.Fprintf(out, "\nYou selected %d - %s\n", idx+1, c.Name)
		}
	}
	return q.items, nil
}

// ask 返回候选下标；-1 表示跳过（含重试用尽）。
func ask(p Prompter, out io.Writer, n int) (int, error) {
	for attempt := 0; attempt < MaxPromptAttempts; attempt++ {
		raw, err := p.Prompt(PromptText)
		if err != nil {
			return -1, err
		}
		input := strings.TrimSpace(raw)
		if input == SkipToken {
			return -1, nil
		}
		if v, err := strconv.Atoi(input); err == nil && v >= 1 && v <= n {
			return v - 1, nil
		}
		fmt.Fprintf(out, "%s is not valid, please try again.\n", input)
	}
	fmt.Fprintf(out, "too many invalid inputs, skipping\n")
	return -1, nil
}

func (q *Queue) render(it domain.ReviewItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nDo any of the following match %q?\n\n", it.FileName)
	if q.Table {
		b.WriteString(candidateTable(it.Candidates))
		b.WriteString("\n\n")
		return b.String()
	}
	for i, c := range it.Candidates {
		fmt.Fprintf(&b, " %d - %s (similarity: %d%%)\n", i+1, c.Name, Percent(c.Similarity))
	}
	b.WriteString("\n")
	return b.String()
}

func candidateTable(cs []domain.Candidate) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"#", "Candidate", "Similarity"})
	for i, c := range cs {
		tw.AppendRow(table.Row{i + 1, c.Name, strconv.Itoa(Percent(c.Similarity)) + "%"})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

// Percent 把相似度四舍五入为整数百分比。
func Percent(sim float64) int {
	return int(math.Round(sim * 100))
}

func (q *Queue) logger() *slog.Logger {
	if q.Logger != nil {
		return q.Logger
	}
	return logging.Discard()
}
