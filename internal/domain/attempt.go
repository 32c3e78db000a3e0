package domain

// Attempt 是一次 (file, source) 的工作单元。
// 为了数据局部性，Attempt 只保存下标（指向 []AudioFile 与 sources），避免复制大结构体。
type Attempt struct {
	FileIdx     int
	SourceIndex int

	Query     string
	SearchURL string
}
