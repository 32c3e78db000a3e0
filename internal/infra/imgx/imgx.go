package imgx

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // 注册 GIF 解码器
	"image/jpeg"
	_ "image/png" // 注册 PNG 解码器

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // 注册 WebP 解码器
)

// 支持的输入格式（按魔数识别）。
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

const jpegQuality = 92

// ErrUnknownFormat 表示数据不是可识别的图片。
var ErrUnknownFormat = errors.New("无法识别的图片格式")

// DetectFormat 按魔数识别图片格式。
func DetectFormat(b []byte) (string, error) {
	switch {
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FormatJPEG, nil
	case len(b) >= 8 && string(b[:8]) == "\x89PNG\r\n\x1a\n":
		return FormatPNG, nil
	case len(b) >= 6 && (string(b[:6]) == "GIF87a" || string(b[:6]) == "GIF89a"):
		return FormatGIF, nil
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return FormatWebP, nil
	}
	return "", ErrUnknownFormat
}

// NormalizeJPEG 把封面统一为 JPEG，必要时等比缩小。
//
// 规则：
// - 输入允许 JPEG/PNG/GIF/WebP；输出固定为 JPEG（透明区域铺白底）
// - maxSize>0 且长边超过 maxSize：等比缩到长边=maxSize（Lanczos3）
// - 已是 JPEG 且无需缩放：原样返回，不做二次有损编码
func NormalizeJPEG(data []byte, maxSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("图片为空")
	}
	format, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析图片尺寸失败：%w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("图片尺寸无效")
	}
	needResize := maxSize > 0 && (cfg.Width > maxSize || cfg.Height > maxSize)
	if format == FormatJPEG && !needResize {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败：%w", err)
	}
	if needResize {
		img = resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)
	}

	// 铺白底：JPEG 没有 alpha 通道。
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
