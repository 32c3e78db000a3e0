package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chris-bingham/meta-geta/internal/domain"
)

func TestStore_ReadWriteRecord(t *testing.T) {
	s := New(t.TempDir())
	rec := domain.SongMetadata{"artist": "A", "title": "T", "artwork": "/img/1.jpg"}

	if err := s.WriteRecord("Beat Port", "https://x.test/track/1", rec); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	got, ok, err := s.ReadRecord("beat port", "https://x.test/track/1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if got["title"] != "T" || got["artwork"] != "/img/1.jpg" {
		t.Fatalf("内容不一致：%v", got)
	}

	p, _ := s.RecordPath("Beat Port", "https://x.test/track/1")
	if !strings.Contains(p, filepath.Join("records", "beat_port")) {
		t.Fatalf("站点目录未规整：%q", p)
	}

	_, ok, err = s.ReadRecord("beat port", "https://x.test/track/2")
	if err != nil || ok {
		t.Fatalf("不同 URL 不应命中：ok=%v err=%v", ok, err)
	}
}

func TestStore_DisabledIsNoop(t *testing.T) {
	s := New("  ")
	if s.Enabled() {
		t.Fatalf("空目录应禁用缓存")
	}
	if err := s.WriteRecord("a", "u", domain.SongMetadata{"x": "y"}); err != nil {
		t.Fatalf("禁用时写入应忽略，实际 %v", err)
	}
	if _, ok, err := s.ReadRecord("a", "u"); ok || err != nil {
		t.Fatalf("禁用时读取应未命中：ok=%v err=%v", ok, err)
	}
	if _, err := s.RecordPath("a", "u"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("期望 ErrDisabled，实际 %v", err)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	s := New(t.TempDir())
	p, err := s.RecordPath("a", "u")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(p, []byte("{"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
	if _, ok, err := s.ReadRecord("a", "u"); ok || err == nil {
		t.Fatalf("损坏记录应返回错误：ok=%v err=%v", ok, err)
	}
}

func TestCleanSource_RejectsEmpty(t *testing.T) {
	if _, err := cleanSource(" !! "); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}
