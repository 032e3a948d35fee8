package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lostandfound/internal/models"
	"lostandfound/internal/repositories"
)

// AuditService is the append side of the auth event log. Record is
// best-effort synchronous: the write happens before the caller returns, but a
// storage failure is logged, never propagated, so no failure path can be
// blocked by the audit trail itself.
type AuditService interface {
	Record(eventType, identifier string, success bool, detail string)
	Query(f models.AuthEventFilter) ([]*models.AuthEvent, *models.AuthEventStats, error)
}

type auditService struct {
	repo   repositories.AuthEventRepository
	rdb    *redis.Client // optional rolling counters; nil falls back to SQL
	alerts *AlertService

	threshold    int
	window       time.Duration
	defaultLimit int
	limitCap     int
}

func NewAuditService(
	repo repositories.AuthEventRepository,
	rdb *redis.Client,
	alerts *AlertService,
	threshold int,
	window time.Duration,
	defaultLimit, limitCap int,
) AuditService {
	return &auditService{
		repo:         repo,
		rdb:          rdb,
		alerts:       alerts,
		threshold:    threshold,
		window:       window,
		defaultLimit: defaultLimit,
		limitCap:     limitCap,
	}
}

func (s *auditService) Record(eventType, identifier string, success bool, detail string) {
	e := &models.AuthEvent{
		Type:       eventType,
		Identifier: identifier,
		Success:    success,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}

	// alert_flag is derived from prior events only (counter cache or log scan),
	// never from an in-process counter that could desync from the log
	if !success && eventType == models.EventLogin && identifier != "" {
		n := s.failureCount(identifier, e.CreatedAt)
		if n >= s.threshold {
			e.AlertFlag = true
			if n == s.threshold {
				// fire once, at the crossing; send is bounded and best-effort
				go s.alerts.NotifySuspicious(identifier, n)
			}
		}
	}

	if err := s.repo.Insert(e); err != nil {
		log.Printf("[audit][append] failed: type=%s identifier=%s err=%v", eventType, identifier, err)
	}
}

func (s *auditService) Query(f models.AuthEventFilter) ([]*models.AuthEvent, *models.AuthEventStats, error) {
	if f.Limit <= 0 {
		f.Limit = s.defaultLimit
	}
	if f.Limit > s.limitCap {
		f.Limit = s.limitCap
	}
	events, err := s.repo.List(f)
	if err != nil {
		return nil, nil, err
	}
	stats, err := s.repo.Stats(f)
	if err != nil {
		return nil, nil, err
	}
	return events, stats, nil
}

// failureCount returns the failed-login count for the identifier inside the
// window, including the event currently being appended.
func (s *auditService) failureCount(identifier string, now time.Time) int {
	if s.rdb != nil {
		if n, ok := s.bumpBuckets(identifier, now); ok {
			return n
		}
	}
	n, err := s.repo.CountFailures(identifier, models.EventLogin, now.Add(-s.window))
	if err != nil {
		log.Printf("[audit][count] failed: identifier=%s err=%v", identifier, err)
		return 0
	}
	return n + 1
}

func bucketKey(identifier string, t time.Time) string {
	return fmt.Sprintf("auth:fail:%s:%d", identifier, t.Truncate(time.Hour).Unix())
}

// bumpBuckets increments the current hourly bucket and sums the window.
// Buckets expire on their own, so the counter set never grows unbounded.
func (s *auditService) bumpBuckets(identifier string, now time.Time) (int, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := s.rdb.TxPipeline()
	pipe.Incr(ctx, bucketKey(identifier, now))
	pipe.Expire(ctx, bucketKey(identifier, now), s.window+time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[audit][redis] incr failed: %v", err)
		return 0, false
	}

	hours := int(s.window / time.Hour)
	keys := make([]string, 0, hours+1)
	for i := 0; i <= hours; i++ {
		keys = append(keys, bucketKey(identifier, now.Add(-time.Duration(i)*time.Hour)))
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		log.Printf("[audit][redis] mget failed: %v", err)
		return 0, false
	}
	total := 0
	for _, v := range vals {
		if str, ok := v.(string); ok {
			if n, err := strconv.Atoi(str); err == nil {
				total += n
			}
		}
	}
	return total, true
}
