package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
)

// Store 提供 <cache_dir>/records/<source>/<hash>.json 下的详情页记录缓存。
//
// 约束：
// - Dir 为空表示禁用：读永远未命中，写直接忽略
// - key = 站点名 + 详情页 URL；文件名用 URL 的 sha256，避免路径穿越与超长文件名
// - 缓存的是提取后的记录（含 artwork URL），不缓存原始 HTML 和图片
type Store struct {
	Dir string
}

// ErrDisabled 在调用方明确要求写入但缓存未启用时返回。
var ErrDisabled = errors.New("cache: disabled")

func New(dir string) Store {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return Store{}
	}
	return Store{Dir: filepath.Clean(dir)}
}

// Enabled 表示是否配置了 cache_dir。
func (s Store) Enabled() bool { return s.Dir != "" }

// RecordPath 返回记录缓存的绝对路径。
func (s Store) RecordPath(source, detailURL string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	src, err := cleanSource(source)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(detailURL) == "" {
		return "", fmt.Errorf("detailURL 不能为空")
	}
	return filepath.Join(s.Dir, "records", src, urlKey(detailURL)+".json"), nil
}

// ReadRecord 读取缓存记录。未启用或未命中返回 ok=false；文件损坏视为未命中并返回错误。
func (s Store) ReadRecord(source, detailURL string) (domain.SongMetadata, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	path, err := s.RecordPath(source, detailURL)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rec domain.SongMetadata
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, false, fmt.Errorf("缓存记录损坏 %q：%w", path, err)
	}
	return rec, true, nil
}

// WriteRecord 原子写入缓存记录。未启用时直接返回 nil。
func (s Store) WriteRecord(source, detailURL string, rec domain.SongMetadata) error {
	if !s.Enabled() {
		return nil
	}
	path, err := s.RecordPath(source, detailURL)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func urlKey(u string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(u)))
	return hex.EncodeToString(sum[:16])
}

var unsafeSourceRE = regexp.MustCompile(`[^a-z0-9_-]+`)

// cleanSource 把站点名规整为安全的目录名（小写，非 [a-z0-9_-] 折叠为 '_'）。
func cleanSource(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(unsafeSourceRE.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "", fmt.Errorf("source 不能为空")
	}
	return s, nil
}
