// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

// TestRun creates a finished run record.
func TestRun(id, webID string, startedAt int64) *store.RunRecord {
	return &store.RunRecord{
		RunID:      id,
		WebID:      webID,
		State:      "done",
		Outcome:    "found",
		InboxCount: 2,
		Failures: []store.RunFailure{
			{Stage: "storage", Target: webID, Message: "storage discovery failed: 503"},
		},
		StartedAt:  startedAt,
		FinishedAt: startedAt + 1,
	}
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, driverName string, cfg *store.DriverConfig) {
	t.Helper()
	ctx := context.Background()

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatalf("failed to create %s driver: %v", driverName, err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatalf("failed to init %s driver: %v", driverName, err)
	}
	defer driver.Close()

	if driver.Name() != driverName {
		t.Errorf("Name() = %q, want %q", driver.Name(), driverName)
	}

	alice := "https://alice.pod.example/profile/card#me"
	bob := "https://bob.pod.example/profile/card#me"
	now := time.Now().Unix()

	t.Run("PutGet", func(t *testing.T) {
		run := TestRun("run-a1", alice, now)
		if err := driver.PutRun(ctx, run); err != nil {
			t.Fatalf("PutRun() error = %v", err)
		}
		got, err := driver.GetRun(ctx, "run-a1")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.WebID != alice || got.InboxCount != 2 || got.Outcome != "found" {
			t.Errorf("GetRun() = %+v", got)
		}
		if len(got.Failures) != 1 || got.Failures[0].Stage != "storage" {
			t.Errorf("Failures = %+v", got.Failures)
		}
	})

	t.Run("PutReplaces", func(t *testing.T) {
		run := TestRun("run-a2", alice, now+10)
		run.State = "discovering_global"
		run.Outcome = ""
		if err := driver.PutRun(ctx, run); err != nil {
			t.Fatalf("PutRun() error = %v", err)
		}
		run.State = "failed"
		run.Outcome = "fault"
		run.SignalKind = "discovery-fault"
		if err := driver.PutRun(ctx, run); err != nil {
			t.Fatalf("second PutRun() error = %v", err)
		}
		got, err := driver.GetRun(ctx, "run-a2")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.State != "failed" || got.SignalKind != "discovery-fault" {
			t.Errorf("record not replaced: %+v", got)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := driver.GetRun(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		if err := driver.PutRun(ctx, TestRun("run-b1", bob, now+5)); err != nil {
			t.Fatal(err)
		}

		all, err := driver.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(all) != 3 || all[0].RunID != "run-a2" || all[1].RunID != "run-b1" || all[2].RunID != "run-a1" {
			ids := make([]string, 0, len(all))
			for _, r := range all {
				ids = append(ids, r.RunID)
			}
			t.Errorf("ListRuns() order = %v, want newest first", ids)
		}

		onlyAlice, err := driver.ListRuns(ctx, alice, 1)
		if err != nil {
			t.Fatalf("ListRuns(alice) error = %v", err)
		}
		if len(onlyAlice) != 1 || onlyAlice[0].RunID != "run-a2" {
			t.Errorf("ListRuns(alice, 1) = %+v", onlyAlice)
		}
	})
}
