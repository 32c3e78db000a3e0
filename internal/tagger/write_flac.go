package tagger

import (
	"fmt"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"

	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
)

// writeFLAC 重建 metadata：
// - 旧的 VORBIS_COMMENT 与 PICTURE block 全部移除
// - 新 comment block 放在原 comment 的位置（没有则紧跟 STREAMINFO）
// - 封面作为 front cover PICTURE block 追加在末尾
func writeFLAC(path string, fields []field, pic *Picture) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("解析 FLAC：%w", err)
	}

	cmts := flacvorbis.New()
	for _, fd := range fields {
		if err := cmts.Add(vorbisKey(fd.key), fd.value); err != nil {
			return fmt.Errorf("添加字段 %s：%w", fd.key, err)
		}
	}
	cmtBlock := cmts.Marshal()

	var picBlock *flac.MetaDataBlock
	if pic != nil {
		p, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front Cover", pic.Data, pic.MIME)
		if err != nil {
			return fmt.Errorf("封面：%w", err)
		}
		b := p.Marshal()
		picBlock = &b
	}

	meta := make([]*flac.MetaDataBlock, 0, len(f.Meta)+2)
	placed := false
	for _, m := range f.Meta {
		switch m.Type {
		case flac.VorbisComment:
			if !placed {
				meta = append(meta, &cmtBlock)
				placed = true
			}
		case flac.Picture:
		default:
			meta = append(meta, m)
		}
	}
	if !placed {
		at := 0
		if len(meta) > 0 && meta[0].Type == flac.StreamInfo {
			at = 1
		}
		meta = append(meta[:at], append([]*flac.MetaDataBlock{&cmtBlock}, meta[at:]...)...)
	}
	if picBlock != nil {
		meta = append(meta, picBlock)
	}
	f.Meta = meta

	return fsx.ReplaceVia(path, f.Save)
}
