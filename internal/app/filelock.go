// Package app 放置 run 与 CLI 共用的小型运行期工具。
package app

import "sync"

// FileLocks 为每个文件下标提供一把互斥锁。
//
// 同一文件可能被多个站点同时自动接受；写标签必须串行，否则后写者会读到半写的文件。
type FileLocks struct {
	mu []sync.Mutex
}

// NewFileLocks 为 n 个文件分配锁。
func NewFileLocks(n int) *FileLocks {
	return &FileLocks{mu: make([]sync.Mutex, n)}
}

// Lock 锁住文件 idx，返回解锁函数。idx 越界时返回空操作。
func (l *FileLocks) Lock(idx int) (unlock func()) {
	if idx < 0 || idx >= len(l.mu) {
		return func() {}
	}
	l.mu[idx].Lock()
	return l.mu[idx].Unlock
}
