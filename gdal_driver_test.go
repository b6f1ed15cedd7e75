package xraster

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLimiterSize(t *testing.T) {
	tests := []struct{ cpus, want int }{
		{1, 4},
		{2, 4},
		{4, 8},
		{8, 16},
		{64, 16},
	}
	for _, tt := range tests {
		if got := limiterSize(tt.cpus); got != tt.want {
			t.Errorf("limiterSize(%d) = %d, want %d", tt.cpus, got, tt.want)
		}
	}
}

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := &gdalLimiter{slots: make(chan struct{}, 2)}
	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.acquire()
			defer l.release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestGDALErrorHandler(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := gdalErrorHandler(log)

	if err := h(godal.CE_Warning, 1, "just a warning"); err != nil {
		t.Errorf("warning returned %v", err)
	}
	if len(hook.Entries) != 1 || hook.LastEntry().Level != logrus.WarnLevel {
		t.Errorf("warning not logged: %v", hook.Entries)
	}
	if err := h(godal.CE_Failure, 4, "boom"); err == nil {
		t.Error("failure swallowed")
	}
}

func TestOpenDatasetReleasesSlotOnFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "not-a-raster.tif")
	for i := 0; i < limiterSize(64)+1; i++ {
		_, err := openDataset(path, log)
		if !errors.Is(err, ErrComputation) {
			t.Fatalf("err = %v, want ErrComputation", err)
		}
	}
}
