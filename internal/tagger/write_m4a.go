package tagger

import (
	"fmt"

	"github.com/Sorrow446/go-mp4tag"
)

func writeM4A(path string, fields []field, pic *Picture) error {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("打开文件：%w", err)
	}
	defer mp4.Close()

	tags := &mp4tag.MP4Tags{Custom: map[string]string{}}
	for _, f := range fields {
		switch f.key {
		case FieldTitle:
			tags.Title = f.value
		case FieldArtist:
			tags.Artist = f.value
		case FieldAlbum:
			tags.Album = f.value
		case FieldAlbumArtist:
			tags.AlbumArtist = f.value
		case FieldGenre:
			tags.CustomGenre = f.value
		case FieldDate:
			tags.Date = f.value
		case FieldTrack:
			if n, total, ok := splitNumber(f.value); ok {
				tags.TrackNumber = safeInt16(n)
				tags.TrackTotal = safeInt16(total)
				continue
			}
			tags.Custom[vorbisKey(f.key)] = f.value
		default:
			tags.Custom[vorbisKey(f.key)] = f.value
		}
	}

	if pic != nil {
		tags.Pictures = []*mp4tag.MP4Picture{{Data: pic.Data}}
	}

	if err := mp4.Write(tags, nil); err != nil {
		return fmt.Errorf("写入：%w", err)
	}
	return nil
}

func safeInt16(n int) int16 {
	if n > 32767 {
		return 32767
	}
	if n < -32768 {
		return -32768
	}
	return int16(n)
}
