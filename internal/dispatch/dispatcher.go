package dispatch

import (
	"context"
	"sync"

	"coldwatch/internal/models"

	"go.uber.org/zap"
)

// AlertCreator 告警创建接口（由 service.AlertService 实现）
type AlertCreator interface {
	HandleViolation(ctx context.Context, violation models.ThresholdViolation) error
}

// Dispatcher 违规分发器
// 摄取管线通过 Enqueue 投递违规（不阻塞），worker 池异步调用告警服务。
// 队列满时丢弃并计数，摄取吞吐不受告警落库速度影响。
type Dispatcher struct {
	creator AlertCreator
	logger  *zap.Logger

	queue   chan models.ThresholdViolation
	workers int

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	dropped int64
}

// NewDispatcher 创建分发器
func NewDispatcher(creator AlertCreator, queueSize, workers int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}

	return &Dispatcher{
		creator: creator,
		logger:  logger,
		queue:   make(chan models.ThresholdViolation, queueSize),
		workers: workers,
	}
}

// Start 启动 worker 池；ctx 取消后 worker 退出
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.logger.Info("Violation dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
	)
}

// worker 消费违规队列；退出前先清空已入队的违规
func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			d.drain(id)
			return
		case violation := <-d.queue:
			d.handle(ctx, id, violation)
		}
	}
}

// drain 排空队列中剩余的违规（ctx 已取消，处理用独立上下文）
func (d *Dispatcher) drain(id int) {
	for {
		select {
		case violation := <-d.queue:
			d.handle(context.Background(), id, violation)
		default:
			return
		}
	}
}

// handle 处理单条违规
func (d *Dispatcher) handle(ctx context.Context, id int, violation models.ThresholdViolation) {
	if err := d.creator.HandleViolation(ctx, violation); err != nil {
		d.logger.Error("Failed to handle violation",
			zap.Int("worker", id),
			zap.String("entity_id", violation.EntityID),
			zap.String("threshold_type", string(violation.ThresholdType)),
			zap.Error(err),
		)
	}
}

// Enqueue 投递违规；队列满时返回 false，违规被丢弃
func (d *Dispatcher) Enqueue(violation models.ThresholdViolation) bool {
	select {
	case d.queue <- violation:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		return false
	}
}

// Dropped 已丢弃的违规数量
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Wait 等待全部 worker 退出（ctx 取消后调用）
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
