package utils

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mdobak/go-xerrors"
)

func TestGetSortedKeys(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	m := map[time.Time]int{d1: 1, d2: 2, d3: 3}

	asc := GetSortedKeys(m, true)
	if !asc[0].Equal(d1) || !asc[1].Equal(d3) || !asc[2].Equal(d2) {
		t.Errorf("unexpected ascending order: %v", asc)
	}
	desc := GetSortedKeys(m, false)
	if !desc[0].Equal(d2) || !desc[2].Equal(d1) {
		t.Errorf("unexpected descending order: %v", desc)
	}
}

func TestExecuteWithGDALLockSerializes(t *testing.T) {
	var wg sync.WaitGroup
	active, maxActive := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ExecuteWithGDALLock(func() error {
				active++
				if active > maxActive {
					maxActive = active
				}
				time.Sleep(time.Millisecond)
				active--
				return nil
			})
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("expected one caller at a time, saw %d", maxActive)
	}
}

func TestLoggerExpandsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Error("plain", slog.Any("error", errors.New("boom")))
	if !strings.Contains(buf.String(), "error.msg=boom") {
		t.Errorf("expected error message attribute, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "trace") {
		t.Errorf("plain errors carry no trace, got %q", buf.String())
	}

	buf.Reset()
	logger.Error("traced", slog.Any("error", xerrors.New("boom")))
	if !strings.Contains(buf.String(), "error.trace=") {
		t.Errorf("expected a stack trace for xerrors errors, got %q", buf.String())
	}
}
