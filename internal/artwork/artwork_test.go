package artwork

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDownloader struct {
	body []byte
	err  error
}

func (d stubDownloader) Fetch(context.Context, string) ([]byte, error) { return d.body, d.err }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStore_AcquireAndRelease(t *testing.T) {
	s := NewStore(t.TempDir(), 0, stubDownloader{body: pngBytes(t)})

	h, err := s.Acquire(context.Background(), "http://x.test/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", h.MIME)
	assert.FileExists(t, h.Path)

	data, err := h.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data[:3])

	require.NoError(t, h.Release())
	assert.NoFileExists(t, h.Path)
	// 重复 Release 不报错。
	require.NoError(t, h.Release())
}

func TestStore_ConcurrentAcquireUniqueNames(t *testing.T) {
	s := NewStore(t.TempDir(), 0, stubDownloader{body: pngBytes(t)})

	const n = 16
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := s.Acquire(context.Background(), "http://x.test/a.png")
			if err != nil {
				t.Errorf("Acquire 失败：%v", err)
				return
			}
			paths[i] = h.Path
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		require.NotEmpty(t, p)
		assert.False(t, seen[p], "重复的临时文件名：%s", p)
		seen[p] = true
	}
}

func TestStore_AcquireErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewStore(dir, 0, stubDownloader{}).Acquire(context.Background(), "  ")
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = NewStore(dir, 0, stubDownloader{err: boom}).Acquire(context.Background(), "http://x")
	assert.ErrorIs(t, err, boom)

	_, err = NewStore(dir, 0, stubDownloader{body: []byte("<html/>")}).Acquire(context.Background(), "http://x")
	assert.Error(t, err)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "失败路径不应留下文件")
}
