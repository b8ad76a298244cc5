package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data"), "analysis")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestFileStoreReadBeforeWrite(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx)
	if err != nil || ok {
		t.Fatalf("expected absent artifact, got ok=%v err=%v", ok, err)
	}
	if _, err := s.Read(ctx); !errors.Is(err, apperrors.ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
	if _, err := s.Age(ctx); !errors.Is(err, apperrors.ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound from Age, got %v", err)
	}
}

func TestFileStoreRoundTripAndFormat(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	table := analysis.Table{{Text: "機械学習", Value: 4}, {Text: "Docker", Value: 2}}

	if err := s.Write(ctx, table); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 || got[0] != table[0] || got[1] != table[1] {
		t.Errorf("round trip mismatch: %v", got)
	}

	raw, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"text": "機械学習"`) {
		t.Errorf("expected pretty-printed unescaped UTF-8, got:\n%s", raw)
	}
	if age, err := s.Age(ctx); err != nil || age > time.Minute {
		t.Errorf("unexpected age %v err %v", age, err)
	}
}

func TestFileStoreEmptyTable(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	if err := s.Write(ctx, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ok, _ := s.Exists(ctx)
	if !ok {
		t.Fatal("an empty table is still an artifact")
	}
	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty table, got %#v", got)
	}
}

func TestFileStoreEmptyFileIsNotReady(t *testing.T) {
	s := newFileStore(t)
	if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok, _ := s.Exists(context.Background())
	if ok {
		t.Error("zero-length file must not count as an artifact")
	}
	if _, err := s.Read(context.Background()); !errors.Is(err, apperrors.ErrCacheNotFound) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestFileStoreAgeUsesClock(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()
	if err := s.Write(ctx, analysis.Table{{Text: "Go", Value: 1}}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	age, err := s.Age(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if age < 119*time.Minute {
		t.Errorf("expected about 2h, got %v", age)
	}
}

func TestFileStoreReadersNeverSeePartialWrites(t *testing.T) {
	s := newFileStore(t)
	ctx := context.Background()

	big := make(analysis.Table, 0, 2000)
	for i := 0; i < 2000; i++ {
		big = append(big, analysis.Entry{Text: strings.Repeat("語", 1+i%7), Value: 2000 - i})
	}
	small := analysis.Table{{Text: "Go", Value: 1}}
	if err := s.Write(ctx, small); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			tbl := big
			if i%2 == 1 {
				tbl = small
			}
			if err := s.Write(ctx, tbl); err != nil {
				t.Errorf("Write: %v", err)
				return
			}
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		got, err := s.Read(ctx)
		if err != nil {
			t.Fatalf("reader saw a broken artifact: %v", err)
		}
		if len(got) != len(big) && len(got) != len(small) {
			t.Fatalf("reader saw %d entries", len(got))
		}
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	s := newFileStore(t)
	for i := 0; i < 3; i++ {
		if err := s.Write(context.Background(), analysis.Table{{Text: "Go", Value: i + 1}}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the artifact, found %v", names)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "data" {
		t.Errorf("expected a data directory, got %s", dir)
	}
}
