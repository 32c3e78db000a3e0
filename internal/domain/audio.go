package domain

// AudioFile 描述一次扫描得到的音频文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - Name 是带扩展名的文件名（查询规范化以它为输入）
type AudioFile struct {
	AbsPath string
	Name    string
	Ext     string // ".mp3"（小写）
	Size    int64
	ModUnix int64
}
