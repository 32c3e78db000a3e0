package tagger

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dhowden/tag"
)

// Summary 是写入后读回的标签摘要（用于日志与测试）。
type Summary struct {
	Format     string
	Title      string
	Artist     string
	Album      string
	Genre      string
	HasPicture bool

	// Extra 是自定义字段（ID3 TXXX 描述 / Vorbis 键，统一小写）。
	Extra map[string]string
}

var standardVorbis = map[string]bool{"title": true, "artist": true, "album": true, "genre": true}

// ReadBack 用独立的读取实现解析 path 的标签。WAV 等无法识别的容器返回 tag.ErrNoTagsFound。
func ReadBack(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Summary{}, fmt.Errorf("读取标签：%w", err)
	}

	s := Summary{
		Format:     string(m.Format()),
		Title:      m.Title(),
		Artist:     m.Artist(),
		Album:      m.Album(),
		Genre:      m.Genre(),
		HasPicture: m.Picture() != nil,
		Extra:      map[string]string{},
	}

	raw := m.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := raw[k].(type) {
		case *tag.Comm:
			// ID3 TXXX（TXXX、TXXX_0、…）
			if strings.HasPrefix(k, "TXXX") || strings.HasPrefix(k, "TXX") {
				s.Extra[strings.ToLower(v.Description)] = v.Text
			}
		case string:
			if s.Format == string(tag.VORBIS) && !standardVorbis[k] {
				s.Extra[strings.ToLower(k)] = v
			}
		}
	}
	return s, nil
}

// Fields 把 Summary 展开为稳定的 key=value 列表（日志友好）。
func (s Summary) Fields() []string {
	out := []string{}
	add := func(k, v string) {
		if v != "" {
			out = append(out, k+"="+v)
		}
	}
	add(FieldTitle, s.Title)
	add(FieldArtist, s.Artist)
	add(FieldAlbum, s.Album)
	add(FieldGenre, s.Genre)
	keys := make([]string, 0, len(s.Extra))
	for k := range s.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, s.Extra[k])
	}
	return out
}
