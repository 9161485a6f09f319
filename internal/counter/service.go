// 包 counter：计数服务，组合存储、超时与访问流发布
package counter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"page-counter/internal/logger"
	"page-counter/internal/metrics"
	"page-counter/internal/model"
)

// DefaultTimeout：未配置时单次存储操作的上限
const DefaultTimeout = 5 * time.Second

// Store：计数所需的存储能力，由 store.SQLStore 实现
type Store interface {
	RecordAndCount(ctx context.Context, v model.Visit) (model.AccessRecord, model.Snapshot, error)
	Count(ctx context.Context, v model.Visit) (model.Snapshot, error)
	Ping(ctx context.Context) error
}

// Publisher：已提交访问记录的下游订阅（可选）
type Publisher interface {
	Publish(ctx context.Context, rec model.AccessRecord) error
}

// StorageError：存储失败或超时；调用方可重试
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

type Options struct {
	Timeout   time.Duration
	Publisher Publisher
	Logger    *slog.Logger
}

// Service：无请求级共享状态，可并发调用
type Service struct {
	store   Store
	timeout time.Duration
	pub     Publisher
	l       *slog.Logger
}

func NewService(st Store, opts Options) *Service {
	s := &Service{store: st, timeout: opts.Timeout, pub: opts.Publisher, l: opts.Logger}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.l == nil {
		s.l = logger.L()
	}
	return s
}

// RecordAndCount：写入一条访问记录并返回包含该记录的计数
// 约束：失败时不返回任何计数；发布失败只记日志，不影响已提交的结果
func (s *Service) RecordAndCount(ctx context.Context, v model.Visit) (model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	rec, snap, err := s.store.RecordAndCount(ctx, v)
	metrics.StoreDurationMs.WithLabelValues("record").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.Snapshot{}, s.fail("record", v, err)
	}
	s.publish(ctx, rec)
	return snap, nil
}

// Count：只读计数
func (s *Service) Count(ctx context.Context, v model.Visit) (model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	snap, err := s.store.Count(ctx, v)
	metrics.StoreDurationMs.WithLabelValues("count").Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return model.Snapshot{}, s.fail("count", v, err)
	}
	return snap, nil
}

func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		metrics.StorageErrorsTotal.WithLabelValues("ping").Inc()
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

func (s *Service) fail(op string, v model.Visit, err error) error {
	metrics.StorageErrorsTotal.WithLabelValues(op).Inc()
	s.l.Error("store_error", "op", op, "page", v.PageKey, "site", v.SiteKey, "err", err)
	return &StorageError{Op: op, Err: err}
}

func (s *Service) publish(ctx context.Context, rec model.AccessRecord) {
	if s.pub == nil {
		return
	}
	// 记录已提交，发布不受请求取消影响
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.pub.Publish(pctx, rec); err != nil {
		metrics.FeedPublishFailTotal.Inc()
		s.l.Warn("feed_publish_error", "id", rec.ID, "err", err)
	}
}
