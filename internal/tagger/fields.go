package tagger

import (
	"sort"
	"strconv"
	"strings"

	"go.senan.xyz/taglib"
)

// 规范字段名。详情页字段名先经 canonicalKey 归一，再映射到各格式的帧/键；
// 不认识的字段按自定义字段写入（ID3 TXXX、Vorbis 大写键、MP4 freeform atom）。
const (
	FieldTitle       = "title"
	FieldArtist      = "artist"
	FieldAlbum       = "album"
	FieldAlbumArtist = "album_artist"
	FieldGenre       = "genre"
	FieldDate        = "date"
	FieldComposer    = "composer"
	FieldLabel       = "label"
	FieldComment     = "comment"
	FieldBPM         = "bpm"
	FieldKey         = "key"
	FieldISRC        = "isrc"
	FieldTrack       = "track"
	FieldCatalog     = "catalog"
	FieldRemixer     = "remixer"
)

var aliases = map[string]string{
	"albumartist":    FieldAlbumArtist,
	"year":           FieldDate,
	"released":       FieldDate,
	"release_date":   FieldDate,
	"publisher":      FieldLabel,
	"record_label":   FieldLabel,
	"initial_key":    FieldKey,
	"initialkey":     FieldKey,
	"musical_key":    FieldKey,
	"tracknumber":    FieldTrack,
	"track_number":   FieldTrack,
	"catalognumber":  FieldCatalog,
	"catalog_number": FieldCatalog,
	"remixers":       FieldRemixer,
}

// field 是归一后的一条标签（key 为规范名或自定义名的小写形式）。
type field struct {
	key   string
	value string
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	if c, ok := aliases[k]; ok {
		return c
	}
	return k
}

// normalizeFields 归一字段名、去掉空值，并按 key 排序输出（写入顺序确定）。
// 多个原始字段归一到同一 key 时，按原始字段名字典序取第一个。
func normalizeFields(in map[string]string) []field {
	names := make([]string, 0, len(in))
	for k := range in {
		names = append(names, k)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(names))
	out := make([]field, 0, len(names))
	for _, name := range names {
		k := canonicalKey(name)
		v := strings.TrimSpace(in[name])
		if k == "" || v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, field{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out
}

var vorbisKeys = map[string]string{
	FieldTitle:       taglib.Title,
	FieldArtist:      taglib.Artist,
	FieldAlbum:       taglib.Album,
	FieldAlbumArtist: taglib.AlbumArtist,
	FieldGenre:       taglib.Genre,
	FieldDate:        taglib.Date,
	FieldLabel:       taglib.Label,
	FieldISRC:        taglib.ISRC,
	FieldTrack:       taglib.TrackNumber,
	FieldCatalog:     taglib.CatalogNumber,
	FieldComposer:    "COMPOSER",
	FieldComment:     "COMMENT",
	FieldBPM:         "BPM",
	FieldKey:         "INITIALKEY",
	FieldRemixer:     "REMIXER",
}

// vorbisKey 返回 Vorbis comment / TagLib 属性名。
// 自定义字段转为大写，并把 0x20..0x7D 以外的字符与 '=' 替换为 '_'。
func vorbisKey(k string) string {
	if v, ok := vorbisKeys[k]; ok {
		return v
	}
	return customName(k)
}

func customName(k string) string {
	b := []byte(strings.ToUpper(k))
	for i, c := range b {
		if c < 0x20 || c > 0x7d || c == '=' {
			b[i] = '_'
		}
	}
	return string(b)
}

// splitNumber 解析 "3" 或 "3/12"；无法解析时 ok=false。
func splitNumber(s string) (n, total int, ok bool) {
	num, tot, hasTotal := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 0 {
		return 0, 0, false
	}
	if hasTotal {
		total, err = strconv.Atoi(strings.TrimSpace(tot))
		if err != nil || total < 0 {
			return 0, 0, false
		}
	}
	return n, total, true
}
