package domain

// FieldArtwork 是详情页记录中封面字段的固定名称。
const FieldArtwork = "artwork"

// SongMetadata 是详情页解析得到的元数据记录（字段名 -> 值）。
//
// 约束：
// - 字段名来自 source 的 track_fields 配置，不做白名单过滤
// - artwork 字段只是一个 URL/引用，写入前必须通过 Split 拆出
type SongMetadata map[string]string

// Split 把 artwork 字段与其余字段分离；返回的 fields 是新 map，不修改原记录。
func (m SongMetadata) Split() (artwork string, fields map[string]string) {
	fields = make(map[string]string, len(m))
	for k, v := range m {
		if k == FieldArtwork {
			artwork = v
			continue
		}
		fields[k] = v
	}
	return artwork, fields
}
