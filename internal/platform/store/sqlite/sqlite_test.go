package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store/sqlite"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store/testutil"
)

func TestSQLiteDriver(t *testing.T) {
	tempDir := t.TempDir()

	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: tempDir,
	}

	testutil.RunDriverTests(t, "sqlite", cfg)

	if _, err := os.Stat(filepath.Join(tempDir, sqlite.DBFile)); os.IsNotExist(err) {
		t.Errorf("%s not created", sqlite.DBFile)
	}
}

func TestSQLiteDriverCreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	driver, err := store.New(&store.DriverConfig{Driver: "sqlite", DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer driver.Close()
}

func TestSQLiteDriverSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	}

	driver, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver.Init(ctx); err != nil {
		t.Fatal(err)
	}

	run := testutil.TestRun("run-restart", "https://alice.pod.example/profile/card#me", 42)
	if err := driver.PutRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	driver.Close()

	// Reload driver - data should survive
	driver2, err := store.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := driver2.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer driver2.Close()

	got, err := driver2.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("run not found after restart: %v", err)
	}
	if got.WebID != run.WebID || len(got.Failures) != 1 {
		t.Errorf("data corruption: got %+v", got)
	}
}

func TestSQLiteDriverRequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Error("expected error without data_dir")
	}
}
