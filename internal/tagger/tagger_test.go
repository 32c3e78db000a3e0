package tagger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/go-flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.senan.xyz/taglib"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x * 20), B: uint8(y * 20), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// createTestMP3 写一个最小 MPEG1 Layer3 帧（无标签）。
func createTestMP3(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "track.mp3")
	frame := make([]byte, 417)
	frame[0], frame[1], frame[2], frame[3] = 0xff, 0xfb, 0x90, 0x00
	require.NoError(t, os.WriteFile(path, frame, 0o600))
	return path
}

var testFrames = []byte{0xFF, 0xF8, 0x69, 0x08, 0x00, 0x00, 0x00, 0x00}

// createTestFLAC 写 "fLaC" + STREAMINFO（last）+ 一段以同步码开头的帧数据。
func createTestFLAC(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "track.flac")

	var buf bytes.Buffer
	buf.WriteString("fLaC")
	buf.WriteByte(0x80 | byte(flac.StreamInfo))
	buf.Write([]byte{0x00, 0x00, 34})
	info := make([]byte, 34)
	binary.BigEndian.PutUint16(info[0:2], 4096)
	binary.BigEndian.PutUint16(info[2:4], 4096)
	buf.Write(info)
	buf.Write(testFrames)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// createTestWAV 写一个 44.1kHz/16bit/mono、100 个采样的 PCM WAV。
func createTestWAV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "track.wav")

	samples := make([]byte, 200)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(samples)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))     // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))     // channels
	_ = binary.Write(&buf, binary.LittleEndian, uint32(44100)) // sample rate
	_ = binary.Write(&buf, binary.LittleEndian, uint32(88200)) // byte rate
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))     // block align
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))    // bits
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(samples)))
	buf.Write(samples)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestNormalizeFields(t *testing.T) {
	got := normalizeFields(map[string]string{
		"Title":        " Strobe ",
		"Album Artist": "deadmau5",
		"released":     "2009-09-22",
		"Record-Label": "mau5trap",
		"empty":        "   ",
		"title":        "ignored",
		"Length":       "10:37",
	})

	want := []field{
		{key: FieldAlbumArtist, value: "deadmau5"},
		{key: FieldDate, value: "2009-09-22"},
		{key: FieldLabel, value: "mau5trap"},
		{key: "length", value: "10:37"},
		{key: FieldTitle, value: "Strobe"},
	}
	assert.Equal(t, want, got)
}

func TestVorbisKey(t *testing.T) {
	assert.Equal(t, "ALBUMARTIST", vorbisKey(FieldAlbumArtist))
	assert.Equal(t, "INITIALKEY", vorbisKey(FieldKey))
	assert.Equal(t, "MIX_NAME", vorbisKey("mix_name"))
	assert.Equal(t, "A_B", vorbisKey("a=b"))
	assert.Equal(t, "_", vorbisKey("é")[:1])
}

func TestSplitNumber(t *testing.T) {
	n, total, ok := splitNumber("3/12")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, 12, total)

	n, total, ok = splitNumber("7")
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	assert.Equal(t, 0, total)

	_, _, ok = splitNumber("A1")
	assert.False(t, ok)
}

func TestWrite_MP3(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir)
	art := testJPEG(t)

	err := Write(path, map[string]string{
		"title":   "Strobe",
		"artist":  "deadmau5",
		"label":   "mau5trap",
		"remixer": "Original",
		"Length":  "10:37",
		"comment": "via metageta",
	}, &Picture{Data: art})
	require.NoError(t, err)

	s, err := ReadBack(path)
	require.NoError(t, err)
	assert.Equal(t, "Strobe", s.Title)
	assert.Equal(t, "deadmau5", s.Artist)
	assert.True(t, s.HasPicture)
	assert.Equal(t, "10:37", s.Extra["length"])

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	assert.Equal(t, byte(4), tag.Version())
	assert.Equal(t, "mau5trap", tag.GetTextFrame("TPUB").Text)
	assert.Equal(t, "Original", tag.GetTextFrame("TPE4").Text)

	pics := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(t, pics, 1)
	pf, ok := pics[0].(id3v2.PictureFrame)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", pf.MimeType)
	assert.Equal(t, art, pf.Picture)
}

func TestWrite_MP3_ClearsPreviousTags(t *testing.T) {
	dir := t.TempDir()
	path := createTestMP3(t, dir)

	require.NoError(t, Write(path, map[string]string{"title": "Old", "genre": "House", "mix": "Extended"}, nil))
	require.NoError(t, Write(path, map[string]string{"title": "New"}, nil))

	s, err := ReadBack(path)
	require.NoError(t, err)
	assert.Equal(t, "New", s.Title)
	assert.Empty(t, s.Genre)
	assert.Empty(t, s.Extra)
	assert.False(t, s.HasPicture)
}

func TestWrite_FLAC(t *testing.T) {
	dir := t.TempDir()
	path := createTestFLAC(t, dir)
	art := testJPEG(t)

	err := Write(path, map[string]string{
		"title":  "Strobe",
		"artist": "deadmau5",
		"label":  "mau5trap",
		"key":    "B min",
		"Mix":    "Original Mix",
	}, &Picture{Data: art, MIME: "image/jpeg"})
	require.NoError(t, err)

	s, err := ReadBack(path)
	require.NoError(t, err)
	assert.Equal(t, "VORBIS", s.Format)
	assert.Equal(t, "Strobe", s.Title)
	assert.Equal(t, "deadmau5", s.Artist)
	assert.True(t, s.HasPicture)
	assert.Equal(t, "mau5trap", s.Extra["label"])
	assert.Equal(t, "B min", s.Extra["initialkey"])
	assert.Equal(t, "Original Mix", s.Extra["mix"])

	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, flac.StreamInfo, f.Meta[0].Type)
	assert.Equal(t, flac.VorbisComment, f.Meta[1].Type)
	assert.Equal(t, []byte(testFrames), []byte(f.Frames))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestWrite_FLAC_RewriteKeepsSinglePicture(t *testing.T) {
	dir := t.TempDir()
	path := createTestFLAC(t, dir)
	art := testJPEG(t)

	require.NoError(t, Write(path, map[string]string{"title": "A", "genre": "Techno"}, &Picture{Data: art}))
	require.NoError(t, Write(path, map[string]string{"title": "B"}, &Picture{Data: art}))

	f, err := flac.ParseFile(path)
	require.NoError(t, err)
	var comments, pictures int
	for _, m := range f.Meta {
		switch m.Type {
		case flac.VorbisComment:
			comments++
		case flac.Picture:
			pictures++
		}
	}
	assert.Equal(t, 1, comments)
	assert.Equal(t, 1, pictures)

	s, err := ReadBack(path)
	require.NoError(t, err)
	assert.Equal(t, "B", s.Title)
	assert.Empty(t, s.Genre)
}

func TestWrite_WAV(t *testing.T) {
	dir := t.TempDir()
	path := createTestWAV(t, dir)

	require.NoError(t, Write(path, map[string]string{
		"title":  "Strobe",
		"artist": "deadmau5",
		"bpm":    "128",
	}, nil))

	got, err := taglib.ReadTags(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Strobe"}, got[taglib.Title])
	assert.Equal(t, []string{"deadmau5"}, got[taglib.Artist])
	assert.Equal(t, []string{"128"}, got["BPM"])
}

func TestWrite_Errors(t *testing.T) {
	dir := t.TempDir()

	var te *Error
	err := Write(filepath.Join(dir, "missing.mp3"), map[string]string{"title": "x"}, nil)
	require.Error(t, err)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "mp3", te.Format)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	aiff := filepath.Join(dir, "track.aiff")
	require.NoError(t, os.WriteFile(aiff, []byte("FORM"), 0o600))
	err = Write(aiff, map[string]string{"title": "x"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	bad := filepath.Join(dir, "bad.flac")
	require.NoError(t, os.WriteFile(bad, []byte("not a flac file"), 0o600))
	err = Write(bad, map[string]string{"title": "x"}, nil)
	require.Error(t, err)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, bad, te.Path)
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{".mp3", ".MP3", ".flac", ".m4a", ".wav", ".opus"} {
		assert.True(t, Supported(ext), ext)
	}
	assert.False(t, Supported(".aiff"))
	assert.False(t, Supported("mp3"))
}
