package collector

import (
	"sync"
	"time"
)

// RateLimiter 按源名记录上一次请求时间，保证对同一个源的两次请求
// 至少间隔 minInterval。时钟与 sleep 可注入，方便测试用假时钟验证间隔。
type RateLimiter struct {
	mu    sync.Mutex
	last  map[string]time.Time
	now   func() time.Time
	sleep func(time.Duration)
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		last:  make(map[string]time.Time),
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// NewRateLimiterWithClock 测试用：注入自定义时钟与 sleep
func NewRateLimiterWithClock(now func() time.Time, sleep func(time.Duration)) *RateLimiter {
	return &RateLimiter{
		last:  make(map[string]time.Time),
		now:   now,
		sleep: sleep,
	}
}

// Wait 阻塞到距该源上一次请求满 minInterval 为止。
// 先在锁内把本次请求的时间槽预定好再睡眠，并发调用同一个源时会依次排队。
func (l *RateLimiter) Wait(name string, minInterval time.Duration) {
	if minInterval <= 0 {
		l.mu.Lock()
		l.last[name] = l.now()
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	now := l.now()
	at := now
	if prev, ok := l.last[name]; ok {
		if next := prev.Add(minInterval); next.After(now) {
			at = next
		}
	}
	l.last[name] = at
	l.mu.Unlock()

	if wait := at.Sub(now); wait > 0 {
		l.sleep(wait)
	}
}
