package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chris-bingham/meta-geta/internal/domain"
)

// ScanAudio 列出 root 顶层的音频文件（不递归）。
//
// 规则（硬约束）：
// - 只看 root 的直接子项；子目录整体忽略
// - 扩展名取最后一个 '.' 之后的部分，大小写不敏感；exts 不含点（"mp3"）
// - 符号链接跟随一次：指向普通文件才收录，悬空链接跳过
// - 输出按文件名稳定排序
//
// 注意：扫描阶段只做 stat，不读文件内容。
func ScanAudio(root string, exts []string) ([]domain.AudioFile, error) {
	root, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("无法列出目录 %q：%w", root, err)
	}

	allowed := extSet(exts)
	files := make([]domain.AudioFile, 0, len(entries))
	for _, d := range entries {
		if d.IsDir() {
			continue
		}
		name := d.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := allowed[ext]; !ok {
			continue
		}

		path := filepath.Join(root, name)
		info, err := os.Stat(path) // 跟随符号链接
		if err != nil {
			if d.Type()&os.ModeSymlink != 0 {
				continue
			}
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}

		files = append(files, domain.AudioFile{
			AbsPath: path,
			Name:    name,
			Ext:     ext,
			Size:    info.Size(),
			ModUnix: info.ModTime().Unix(),
		})
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func extSet(exts []string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		m["."+e] = struct{}{}
	}
	return m
}
