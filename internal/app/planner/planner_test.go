package planner

import (
	"testing"

	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/domain"
	"github.com/chris-bingham/meta-geta/internal/provider"
	"github.com/chris-bingham/meta-geta/internal/query"
)

func sites() []*provider.Site {
	return []*provider.Site{
		provider.NewSite(0, config.Source{Name: "beatport", BaseURL: "https://bp.test", SearchPath: "/search?q="}),
		provider.NewSite(1, config.Source{Name: "traxsource", BaseURL: "https://tx.test", SearchPath: "/search/{query}"}),
	}
}

func TestBuild_FileMajorSourceMinor(t *testing.T) {
	files := []domain.AudioFile{
		{Name: "Artist - Song.mp3", Ext: ".mp3"},
		{Name: "other_track (extended mix).wav", Ext: ".wav"},
	}

	p := Build(files, sites(), query.New(nil), nil)
	if len(p.Attempts) != 4 {
		t.Fatalf("期望 4 个 attempt，实际 %d", len(p.Attempts))
	}
	if len(p.Unsupported) != 0 {
		t.Fatalf("不期望 unsupported：%v", p.Unsupported)
	}

	want := []struct {
		file, src int
		url       string
	}{
		{0, 0, "https://bp.test/search?q=artist+-+song+original+mix"},
		{0, 1, "https://tx.test/search/artist+-+song+original+mix"},
		{1, 0, "https://bp.test/search?q=other+track+%28extended+mix%29"},
		{1, 1, "https://tx.test/search/other+track+%28extended+mix%29"},
	}
	for i, w := range want {
		a := p.Attempts[i]
		if a.FileIdx != w.file || a.SourceIndex != w.src {
			t.Fatalf("attempt[%d] 期望 (%d,%d)，实际 (%d,%d)", i, w.file, w.src, a.FileIdx, a.SourceIndex)
		}
		if a.SearchURL != w.url {
			t.Fatalf("attempt[%d] 期望 URL %q，实际 %q", i, w.url, a.SearchURL)
		}
	}
	if p.Attempts[0].Query != p.Attempts[1].Query {
		t.Fatalf("同一文件的 query 必须一致：%q vs %q", p.Attempts[0].Query, p.Attempts[1].Query)
	}
}

func TestBuild_UnsupportedFilesAreNotPlanned(t *testing.T) {
	files := []domain.AudioFile{
		{Name: "a.aiff", Ext: ".aiff"},
		{Name: "b.mp3", Ext: ".mp3"},
	}
	p := Build(files, sites(), query.New(nil), func(ext string) bool { return ext == ".mp3" })

	if len(p.Unsupported) != 1 || p.Unsupported[0] != 0 {
		t.Fatalf("期望 unsupported=[0]，实际 %v", p.Unsupported)
	}
	for _, a := range p.Attempts {
		if a.FileIdx == 0 {
			t.Fatalf("不支持的文件不应生成 attempt：%+v", a)
		}
	}
	if len(p.Attempts) != 2 {
		t.Fatalf("期望 2 个 attempt，实际 %d", len(p.Attempts))
	}
}
