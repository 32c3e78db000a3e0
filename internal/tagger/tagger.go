// Package tagger 把详情页记录写入音频文件的标签，并附加封面。
//
// 按扩展名分派：
// - .mp3：ID3v2.4（UTF-8）
// - .flac：Vorbis comment + PICTURE block（整文件重写，经临时文件替换）
// - .m4a/.mp4：iTunes atoms
// - .wav/.ogg/.oga/.opus：TagLib
//
// 约束：每次写入都先清空已有标签，结果只由本次 fields + picture 决定。
package tagger

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtWAV  = ".wav"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtOPUS = ".opus"
)

// ErrUnsupportedFormat 表示扩展名没有对应的写入器。
var ErrUnsupportedFormat = errors.New("不支持的音频格式")

// Picture 是要嵌入的封面。MIME 为空时按内容探测。
type Picture struct {
	Data []byte
	MIME string
}

// Error 是写入标签失败的统一错误（携带文件与格式）。
type Error struct {
	Path   string
	Format string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("写入标签失败（%s）：%s：%v", e.Format, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Supported 判断扩展名（带点，大小写不敏感）是否有写入器。
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtMP3, ExtFLAC, ExtM4A, ExtMP4, ExtWAV, ExtOGG, ExtOGA, ExtOPUS:
		return true
	default:
		return false
	}
}

// Write 把 fields 与 pic 写入 path（原地修改）。pic 为 nil 时不附加封面。
func Write(path string, fields map[string]string, pic *Picture) error {
	ext := strings.ToLower(filepath.Ext(path))
	format := strings.TrimPrefix(ext, ".")

	if _, err := os.Stat(path); err != nil {
		return &Error{Path: path, Format: format, Err: err}
	}
	if pic != nil && len(pic.Data) == 0 {
		pic = nil
	}
	if pic != nil && pic.MIME == "" {
		pic = &Picture{Data: pic.Data, MIME: detectMimeType(pic.Data)}
	}

	fs := normalizeFields(fields)

	var err error
	switch ext {
	case ExtMP3:
		err = writeMP3(path, fs, pic)
	case ExtFLAC:
		err = writeFLAC(path, fs, pic)
	case ExtM4A, ExtMP4:
		err = writeM4A(path, fs, pic)
	case ExtWAV, ExtOGG, ExtOGA, ExtOPUS:
		err = writeTagLib(path, fs, pic)
	default:
		err = ErrUnsupportedFormat
	}
	if err != nil {
		return &Error{Path: path, Format: format, Err: err}
	}
	return nil
}

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// detectMimeType 只区分 JPEG/PNG；其余按 JPEG 处理。
func detectMimeType(data []byte) string {
	if http.DetectContentType(data) == mimePNG {
		return mimePNG
	}
	return mimeJPEG
}
