package tagger

import (
	"fmt"

	"go.senan.xyz/taglib"
)

// writeTagLib 处理 WAV 与 Ogg 家族（Vorbis/Opus）。taglib.Clear 会删除 map 以外的旧字段。
func writeTagLib(path string, fields []field, pic *Picture) error {
	tags := make(map[string][]string, len(fields))
	for _, f := range fields {
		tags[vorbisKey(f.key)] = []string{f.value}
	}

	if err := taglib.WriteTags(path, tags, taglib.Clear); err != nil {
		return fmt.Errorf("写入字段：%w", err)
	}
	if pic != nil {
		if err := taglib.WriteImage(path, pic.Data); err != nil {
			return fmt.Errorf("写入封面：%w", err)
		}
	}
	return nil
}
