// Package artwork 管理封面的临时文件：下载、规整为 JPEG、落盘，并在写入标签后删除。
package artwork

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
	"github.com/chris-bingham/meta-geta/internal/infra/imgx"
)

// Downloader 按 URL 取回字节（provider.Fetcher 满足该接口）。
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store 在 Dir 下创建封面临时文件。
//
// 约束：
// - 每次 Acquire 都得到一个新文件：<序号>-<uuid 前 8 位>.jpg，并发调用不会撞名
// - 文件只活一次写入尝试：调用方必须 defer Handle.Release()
type Store struct {
	Dir        string
	MaxSize    int // 长边上限；<=0 不缩放
	Downloader Downloader

	seq atomic.Uint64
}

func NewStore(dir string, maxSize int, d Downloader) *Store {
	return &Store{Dir: filepath.Clean(dir), MaxSize: maxSize, Downloader: d}
}

// Handle 是一个已落盘的封面临时文件。
type Handle struct {
	Path string
	MIME string
	Size int64

	once sync.Once
	err  error
}

// Release 删除临时文件。可重复调用；文件已不存在不算错误。
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.err = err
		}
	})
	return h.err
}

// Data 读取临时文件内容（供需要字节的标签写入器使用）。
func (h *Handle) Data() ([]byte, error) {
	return os.ReadFile(h.Path)
}

// Acquire 下载 url 指向的封面，规整为 JPEG 后写入新的临时文件。
func (s *Store) Acquire(ctx context.Context, url string) (*Handle, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("封面 URL 为空")
	}
	if s.Downloader == nil {
		return nil, errors.New("downloader 不能为空")
	}

	raw, err := s.Downloader.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, err := imgx.NormalizeJPEG(raw, s.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("封面 %s：%w", url, err)
	}

	name := s.nextName()
	if err := fsx.WriteFileAtomicNoOverwrite(s.Dir, name, img); err != nil {
		return nil, err
	}
	return &Handle{
		Path: filepath.Join(s.Dir, name),
		MIME: "image/jpeg",
		Size: int64(len(img)),
	}, nil
}

func (s *Store) nextName() string {
	n := s.seq.Add(1)
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return strconv.FormatUint(n, 10) + "-" + id + ".jpg"
}
