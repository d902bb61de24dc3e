package okx

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the offset between local and venue clocks so signed
// timestamps land inside the venue's acceptance window.
type TimeSync struct {
	getServerTime func(ctx context.Context) (time.Time, error)
	offset        time.Duration // server - local
	lastSync      time.Time
	mu            sync.RWMutex
}

func NewTimeSync(getServerTime func(ctx context.Context) (time.Time, error)) *TimeSync {
	return &TimeSync{getServerTime: getServerTime}
}

// Sync measures the offset against the venue clock. Network latency is
// assumed symmetric.
func (ts *TimeSync) Sync(ctx context.Context) error {
	localBefore := time.Now()
	serverTime, err := ts.getServerTime(ctx)
	if err != nil {
		return err
	}
	latency := time.Since(localBefore) / 2
	local := localBefore.Add(latency)

	ts.mu.Lock()
	ts.offset = serverTime.Sub(local)
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	log.Printf("timesync: offset=%s server=%s", ts.offset, serverTime.UTC().Format(time.RFC3339Nano))
	return nil
}

// Now returns the current time adjusted for the venue clock offset.
func (ts *TimeSync) Now() time.Time {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().Add(ts.offset)
}

// Offset returns the measured clock offset.
func (ts *TimeSync) Offset() time.Duration {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
