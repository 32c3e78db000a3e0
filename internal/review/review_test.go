package review

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-bingham/meta-geta/internal/domain"
)

// scripted 依次返回预设输入；用尽后返回 io.EOF。
type scripted struct {
	inputs  []string
	prompts int
}

func (s *scripted) Prompt(string) (string, error) {
	s.prompts++
	if len(s.inputs) == 0 {
		return "", io.EOF
	}
	v := s.inputs[0]
	s.inputs = s.inputs[1:]
	return v, nil
}

func item(file string, sims ...float64) domain.ReviewItem {
	it := domain.ReviewItem{FileName: file}
	for i, s := range sims {
		it.Candidates = append(it.Candidates, domain.Candidate{
			Name:       "Artist - Track " + string(rune('A'+i)),
			Similarity: s,
			Ref:        "/t/" + string(rune('a'+i)),
		})
	}
	return it
}

func TestResolve_SelectAndSkip(t *testing.T) {
	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.4, 0.35), item("b.mp3", 0.1)})
	p := &scripted{inputs: []string{"2", "s"}}
	var out bytes.Buffer

	got, err := q.Resolve(context.Background(), p, &out)
	require.NoError(t, err)
	require.Len(t, got, 2)

	c, ok := got[0].SelectedCandidate()
	require.True(t, ok)
	assert.Equal(t, "/t/b", c.Ref)

	_, ok = got[1].SelectedCandidate()
	assert.False(t, ok)

	s := out.String()
	assert.Contains(t, s, `Do any of the following match "a.mp3"?`)
	assert.Contains(t, s, " 1 - Artist - Track A (similarity: 40%)")
	assert.Contains(t, s, " 2 - Artist - Track B (similarity: 35%)")
	assert.Contains(t, s, "You selected 2 - Artist - Track B")
	assert.Contains(t, s, "skipping")
}

func TestResolve_OutOfRangeRePrompts(t *testing.T) {
	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.2, 0.3, 0.1)})
	p := &scripted{inputs: []string{"9", "abc", "3"}}
	var out bytes.Buffer

	got, err := q.Resolve(context.Background(), p, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, p.prompts)
	assert.Contains(t, out.String(), "9 is not valid, please try again.")
	assert.Contains(t, out.String(), "abc is not valid, please try again.")

	c, ok := got[0].SelectedCandidate()
	require.True(t, ok)
	assert.Equal(t, "/t/c", c.Ref)
}

func TestResolve_ZeroAndNegativeAreInvalid(t *testing.T) {
	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.2, 0.3)})
	p := &scripted{inputs: []string{"0", "-1", "1"}}
	var out bytes.Buffer

	got, err := q.Resolve(context.Background(), p, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "0 is not valid, please try again.")
	assert.Contains(t, out.String(), "-1 is not valid, please try again.")

	require.NotNil(t, got[0].Selected)
	assert.Equal(t, 0, *got[0].Selected)
}

func TestResolve_AttemptsExhaustedSkips(t *testing.T) {
	inputs := make([]string, 0, MaxPromptAttempts+1)
	for i := 0; i < MaxPromptAttempts; i++ {
		inputs = append(inputs, "x")
	}
	inputs = append(inputs, "1")

	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.2), item("b.mp3", 0.3)})
	p := &scripted{inputs: inputs}
	var out bytes.Buffer

	got, err := q.Resolve(context.Background(), p, &out)
	require.NoError(t, err)
	assert.Nil(t, got[0].Selected)
	require.NotNil(t, got[1].Selected, "下一条 item 应继续使用后续输入")
	assert.Equal(t, MaxPromptAttempts+1, p.prompts)
}

func TestResolve_EOFSkipsRemaining(t *testing.T) {
	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.2), item("b.mp3", 0.3), item("c.mp3", 0.1)})
	p := &scripted{inputs: []string{"1"}}

	got, err := q.Resolve(context.Background(), p, io.Discard)
	require.NoError(t, err)
	assert.NotNil(t, got[0].Selected)
	assert.Nil(t, got[1].Selected)
	assert.Nil(t, got[2].Selected)
	assert.Equal(t, 2, p.prompts)
}

func TestResolve_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.2)})
	p := &scripted{inputs: []string{"1"}}
	_, err := q.Resolve(ctx, p, io.Discard)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.prompts)
}

func TestResolve_TableRendering(t *testing.T) {
	q := NewQueue([]domain.ReviewItem{item("a.mp3", 0.456)})
	q.Table = true
	var out bytes.Buffer

	_, err := q.Resolve(context.Background(), &scripted{inputs: []string{"s"}}, &out)
	require.NoError(t, err)
	s := out.String()
	assert.Contains(t, s, "Candidate")
	assert.Contains(t, s, "Similarity")
	assert.NotContains(t, s, "CANDIDATE", "表头保持原样大小写")
	assert.Contains(t, s, "Artist - Track A")
	assert.Contains(t, s, "46%")
}

func TestNewQueue_CopiesItems(t *testing.T) {
	items := []domain.ReviewItem{item("a.mp3", 0.2)}
	q := NewQueue(items)
	_, err := q.Resolve(context.Background(), &scripted{inputs: []string{"1"}}, io.Discard)
	require.NoError(t, err)
	assert.Nil(t, items[0].Selected)
	assert.NotNil(t, q.Items()[0].Selected)
	assert.Equal(t, 1, q.Len())
}

func TestTerminalPrompter(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminalPrompter(strings.NewReader("2\r\ns\nlast"), &out)

	for _, want := range []string{"2", "s", "last"} {
		got, err := p.Prompt(PromptText)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := p.Prompt(PromptText)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, strings.Repeat(PromptText, 4), out.String())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 40, Percent(0.4))
	assert.Equal(t, 46, Percent(0.456))
	assert.Equal(t, 0, Percent(0))
	assert.Equal(t, 100, Percent(1))
}
