package review

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TerminalPrompter 从 in 逐行读取输入，提示写到 out。
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewReader(in), out: out}
}

// Prompt 打印 message 并读取一行（去掉行尾换行）。
// 最后一行没有换行时照常返回；之后再读返回 io.EOF。
func (p *TerminalPrompter) Prompt(message string) (string, error) {
	if _, err := fmt.Fprint(p.out, message); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
