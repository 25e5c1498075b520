package illustration

import (
	"context"
	"sync"

	"bedtime-story-api/internal/workflow/port"
	"bedtime-story-api/pkg/logger"
)

// JobHandler 执行插画任务
type JobHandler func(ctx context.Context, job port.IllustrationJob) error

// InProcessDispatcher 在当前进程的后台 goroutine 中执行任务
type InProcessDispatcher struct {
	handle JobHandler
	wg     sync.WaitGroup
}

// NewInProcessDispatcher 创建进程内派发器
func NewInProcessDispatcher(handle JobHandler) *InProcessDispatcher {
	return &InProcessDispatcher{handle: handle}
}

// Dispatch 立即返回；任务不随请求上下文取消
func (d *InProcessDispatcher) Dispatch(ctx context.Context, job port.IllustrationJob) error {
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.handle(bg, job); err != nil {
			logger.Error(bg, "illustration job failed", err, "story_id", job.StoryID, "run_id", job.RunID)
		}
	}()
	return nil
}

// Wait 等待所有已派发任务结束
func (d *InProcessDispatcher) Wait() {
	d.wg.Wait()
}
