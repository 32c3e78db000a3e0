package app

import (
	"sync"
	"testing"
)

func TestFileLocks_SerializesSameFile(t *testing.T) {
	locks := NewFileLocks(2)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(1)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("同一文件期望串行，实际最大并发 %d", maxSeen)
	}
}

func TestFileLocks_OutOfRangeIsNoop(t *testing.T) {
	locks := NewFileLocks(1)
	unlock := locks.Lock(5)
	unlock()
	unlock = locks.Lock(-1)
	unlock()
}
