package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/plano-ai/plano/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found in statuses", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir())
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir())
	statuses := c.RunOnce(context.Background())

	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir())

	// No statuses yet: vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_StoreClosed(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(db, t.TempDir())
	db.Close()

	c.runAll(context.Background())
	if s := statusOf(t, c, "store"); s.Healthy {
		t.Error("store check should fail on a closed database")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}

func TestChecker_DataDirRecovered(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing", "plano")
	c := NewChecker(newTestDB(t), dir)
	c.runAll(context.Background())

	s := statusOf(t, c, "data_dir")
	if !s.Healthy || !s.Recovered {
		t.Errorf("data_dir = %+v, want recovered", s)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plano")
	os.WriteFile(path, []byte("not a dir"), 0644)

	c := NewChecker(newTestDB(t), path)
	c.runAll(context.Background())

	if s := statusOf(t, c, "data_dir"); s.Healthy || s.Error == "" {
		t.Errorf("data_dir = %+v, want failure", s)
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{}
	c.Add(Check{
		Name:    "always_pass",
		CheckFn: func(ctx context.Context) error { return nil },
	})
	c.Add(Check{
		Name:    "always_fail",
		CheckFn: func(ctx context.Context) error { return os.ErrPermission },
	})

	c.runAll(context.Background())

	if !statusOf(t, c, "always_pass").Healthy {
		t.Error("always_pass check should be healthy")
	}
	if s := statusOf(t, c, "always_fail"); s.Healthy || s.Error == "" {
		t.Errorf("always_fail = %+v", s)
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir())
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()
	s1[0].Healthy = false
	if !s2[0].Healthy {
		t.Error("Statuses() should return a copy, not a reference")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(newTestDB(t), t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
