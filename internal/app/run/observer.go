package run

import (
	"time"

	"github.com/chris-bingham/meta-geta/internal/config"
	"github.com/chris-bingham/meta-geta/internal/domain"
)

// Observer 把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（stdout 留给 review 提示）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
// - 阶段顺序固定：scan -> plan -> fanout -> barrier [-> review]。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(root string, cfg config.Config)
	// OnPhaseDone 在阶段结束/就绪时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个 attempt（或 review 选中条目的写入）完成时调用。
	// idx/total 在 fanout 与 review 两段分别计数。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
