package jobs

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	apperr "github.com/matzehuels/reflow/pkg/errors"
	"github.com/matzehuels/reflow/pkg/pipeline"
)

// writeBook writes n inked 30x60 pages into a new directory under root.
func writeBook(t *testing.T, root string, n int) string {
	t.Helper()
	dir := filepath.Join(root, "book")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, 30, 60))
		for j := range img.Pix {
			img.Pix[j] = 255
		}
		for y := 0; y < 60; y++ {
			img.Pix[y*img.Stride+y%30] = 0
		}
		if err := imaging.Save(img, filepath.Join(dir, fmt.Sprintf("%03d.png", i))); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestManager(cfg Config) *Manager {
	return NewManager(pipeline.NewRunner(nil, nil, nil), NewMemoryStore(), cfg)
}

func TestSubmitRunsJob(t *testing.T) {
	root := t.TempDir()
	dir := writeBook(t, root, 2)
	m := newTestManager(Config{})

	job, err := m.Submit(context.Background(), pipeline.Options{Input: dir, Width: 30, Height: 40})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if job.ID == "" || job.Status != StatusQueued {
		t.Fatalf("submitted job = %+v", job)
	}
	m.Wait()

	got, err := m.Get(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != StatusSucceeded {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	// 120 inked rows at 40 rows per page.
	if got.Produced != 3 || got.Stats == nil || got.Stats.OutputPages != 3 {
		t.Errorf("produced = %d, stats = %+v", got.Produced, got.Stats)
	}
	if got.Processed != 2 || got.Total != 2 {
		t.Errorf("processed %d of %d", got.Processed, got.Total)
	}
	if got.Output != filepath.Join(root, "book_reflow") {
		t.Errorf("output = %s", got.Output)
	}
	if got.FinishedAt.IsZero() || got.ExpiresAt.Before(got.FinishedAt) {
		t.Errorf("timestamps = %v / %v", got.FinishedAt, got.ExpiresAt)
	}
}

func TestSubmitRejectsInvalidOptions(t *testing.T) {
	m := newTestManager(Config{})
	_, err := m.Submit(context.Background(), pipeline.Options{Input: "x", Height: -5})
	if !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
	jobs, _ := m.List(context.Background())
	if len(jobs) != 0 {
		t.Errorf("%d jobs recorded for an invalid request", len(jobs))
	}
}

func TestFailedJobRecordsCode(t *testing.T) {
	m := newTestManager(Config{})
	job, err := m.Submit(context.Background(), pipeline.Options{Input: filepath.Join(t.TempDir(), "missing")})
	if err != nil {
		t.Fatal(err)
	}
	m.Wait()

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != StatusFailed || got.Code != apperr.ErrCodeFileNotFound || got.Error == "" {
		t.Errorf("job = %+v", got)
	}
}

func TestCancelQueuedJob(t *testing.T) {
	dir := writeBook(t, t.TempDir(), 1)
	m := newTestManager(Config{Concurrency: 1})

	// Hold the only slot so the job stays queued.
	m.slots <- struct{}{}
	job, err := m.Submit(context.Background(), pipeline.Options{Input: dir, Width: 30})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	m.Wait()
	<-m.slots

	got, _ := m.Get(context.Background(), job.ID)
	if got.Status != StatusCanceled || got.Code != apperr.ErrCodeCanceled {
		t.Errorf("job = %+v", got)
	}
	if _, err := os.Stat(got.Output); !os.IsNotExist(err) {
		t.Error("a job canceled while queued must not create output")
	}

	// Canceling a finished job removes it.
	if _, err := m.Cancel(context.Background(), job.ID); err != nil {
		t.Fatalf("second Cancel error: %v", err)
	}
	if _, err := m.Get(context.Background(), job.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after removal error = %v, want ErrNotFound", err)
	}
}

func TestShutdownRefusesNewJobs(t *testing.T) {
	m := newTestManager(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Submit(context.Background(), pipeline.Options{Input: "x"}); !apperr.Is(err, apperr.ErrCodeCanceled) {
		t.Errorf("Submit after Shutdown error = %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	m := newTestManager(Config{})
	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if _, err := m.Cancel(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel error = %v, want ErrNotFound", err)
	}
}

func TestStatusDone(t *testing.T) {
	tests := map[Status]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusSucceeded: true,
		StatusFailed:    true,
		StatusCanceled:  true,
	}
	for s, want := range tests {
		if s.Done() != want {
			t.Errorf("%s.Done() = %v", s, !want)
		}
	}
}

func testStores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{"memory": NewMemoryStore(), "file": fs}
}

func TestStores(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()
			bg := 200

			a := &Job{ID: "a", Status: StatusRunning, CreatedAt: now, Options: pipeline.Options{Input: "in", Background: &bg}}
			b := &Job{ID: "b", Status: StatusSucceeded, CreatedAt: now.Add(time.Second), ExpiresAt: now.Add(time.Hour)}
			old := &Job{ID: "old", Status: StatusFailed, CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)}
			for _, j := range []*Job{b, a, old} {
				if err := store.Set(ctx, j); err != nil {
					t.Fatalf("Set(%s) error: %v", j.ID, err)
				}
			}

			got, err := store.Get(ctx, "a")
			if err != nil || got == nil {
				t.Fatalf("Get(a) = %v, %v", got, err)
			}
			if got.Options.Input != "in" || got.Options.Background == nil || *got.Options.Background != 200 {
				t.Errorf("options = %+v", got.Options)
			}

			if got, _ := store.Get(ctx, "old"); got != nil {
				t.Error("expired job should not be returned")
			}
			if got, err := store.Get(ctx, "missing"); got != nil || err != nil {
				t.Errorf("Get(missing) = %v, %v", got, err)
			}

			list, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
				t.Errorf("List = %v", list)
			}

			if err := store.Cleanup(ctx); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			if err := store.Delete(ctx, "a"); err != nil {
				t.Errorf("second Delete error: %v", err)
			}
			list, _ = store.List(ctx)
			if len(list) != 1 || list[0].ID != "b" {
				t.Errorf("List after delete = %v", list)
			}
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore()
	job := &Job{ID: "x", Status: StatusQueued}
	store.Set(context.Background(), job)
	job.Status = StatusFailed

	got, _ := store.Get(context.Background(), "x")
	if got.Status != StatusQueued {
		t.Error("store must not alias the caller's job")
	}
}
