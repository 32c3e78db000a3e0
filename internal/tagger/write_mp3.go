package tagger

import (
	"errors"
	"fmt"
	"os"

	"github.com/bogem/id3v2/v2"

	"github.com/chris-bingham/meta-geta/internal/infra/fsx"
)

var id3Frames = map[string]string{
	FieldTitle:       "TIT2",
	FieldArtist:      "TPE1",
	FieldAlbum:       "TALB",
	FieldAlbumArtist: "TPE2",
	FieldGenre:       "TCON",
	FieldDate:        "TDRC",
	FieldComposer:    "TCOM",
	FieldLabel:       "TPUB",
	FieldBPM:         "TBPM",
	FieldKey:         "TKEY",
	FieldISRC:        "TSRC",
	FieldTrack:       "TRCK",
	FieldRemixer:     "TPE4",
}

func writeMP3(path string, fields []field, pic *Picture) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if errors.Is(err, id3v2.ErrUnsupportedVersion) {
		// ID3v2.2 及更早版本无法编辑：先剥离再重开。
		if stripErr := stripID3v2(path); stripErr != nil {
			return fmt.Errorf("剥离旧版 ID3v2：%w", stripErr)
		}
		tag, err = id3v2.Open(path, id3v2.Options{Parse: true})
	}
	if err != nil {
		return fmt.Errorf("打开文件：%w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.DeleteAllFrames()

	for _, f := range fields {
		if f.key == FieldComment {
			tag.AddCommentFrame(id3v2.CommentFrame{
				Encoding: id3v2.EncodingUTF8,
				Language: "eng",
				Text:     f.value,
			})
			continue
		}
		if id, ok := id3Frames[f.key]; ok {
			tag.AddTextFrame(id, id3v2.EncodingUTF8, f.value)
			continue
		}
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: customName(f.key),
			Value:       f.value,
		})
	}

	if pic != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    pic.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     pic.Data,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("保存标签：%w", err)
	}
	return nil
}

const id3Magic = "ID3"

// stripID3v2 去掉文件头部的 ID3v2 标签（含 v2.4 footer），经临时文件替换原文件。
func stripID3v2(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < 10 || string(data[:3]) != id3Magic {
		return nil
	}

	// synchsafe：每字节只用低 7 位
	size := int(data[6])<<21 | int(data[7])<<14 | int(data[8])<<7 | int(data[9])
	tagSize := size + 10
	if data[5]&0x10 != 0 {
		tagSize += 10
	}
	if tagSize >= len(data) {
		return fmt.Errorf("ID3v2 标签长度（%d）超过文件长度（%d）", tagSize, len(data))
	}

	return fsx.ReplaceVia(path, func(tmp string) error {
		return os.WriteFile(tmp, data[tagSize:], 0o644)
	})
}
