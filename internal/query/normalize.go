package query

import "strings"

// DefaultStripTokens 是常见下载站水印（按字面子串删除）。
var DefaultStripTokens = []string{"myfreemp3s", "my-free-mp3s"}

// separators 会被替换为 JoinToken。
var separators = []string{" ", "_", ">", "<", "|"}

const (
	// JoinToken 是查询串的 token 连接符（同时也是 URL query 中的空格）。
	JoinToken = "+"
	// VersionSuffix 在查询中没有出现 "mix" 时追加。
	VersionSuffix = "+original+mix"
)

// Normalizer 把文件名转换为与 source 无关的搜索查询。
//
// 约束：纯函数，相同输入 => 相同输出；不做 URL 转义（由 planner 负责）。
type Normalizer struct {
	StripTokens []string
}

// New 返回使用给定水印列表的 Normalizer；tokens 为空时使用 DefaultStripTokens。
func New(tokens []string) Normalizer {
	if len(tokens) == 0 {
		tokens = DefaultStripTokens
	}
	cp := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			cp = append(cp, t)
		}
	}
	return Normalizer{StripTokens: cp}
}

// Normalize 使用默认水印列表规范化文件名。
func Normalize(fileName string) string {
	return New(nil).Normalize(fileName)
}

// Normalize 规则（固定顺序）：
// 1) 去扩展名：取第一个 '.' 之前的部分；没有 '.' 时整个文件名参与规范化
// 2) 转小写
// 3) 按字面子串删除水印
// 4) 分隔符（空格、'_'、'>'、'<'、'|'）替换为 '+'
// 5) 结果不含 "mix" 时追加 "+original+mix"
func (n Normalizer) Normalize(fileName string) string {
	stem := fileName
	if i := strings.Index(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	s := strings.ToLower(stem)

	for _, tok := range n.StripTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	for _, sep := range separators {
		s = strings.ReplaceAll(s, sep, JoinToken)
	}

	// s 已经是小写，因此这里的判断等价于大小写不敏感。
	if !strings.Contains(s, "mix") {
		s += VersionSuffix
	}
	return s
}

// Tokens 按 JoinToken 拆分查询（保留空 token，便于 planner 原样回拼）。
func Tokens(q string) []string {
	return strings.Split(q, JoinToken)
}
