package cli

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/catalogops/internal/app"
	"github.com/dukerupert/catalogops/internal/auth"
	"github.com/dukerupert/catalogops/internal/config"
	"github.com/dukerupert/catalogops/internal/migrate"
	"github.com/dukerupert/catalogops/internal/remote/remotetest"
)

// setupLocal points the CLI at a SQLite backend and an in-memory bucket
// shared across commands.
func setupLocal(t *testing.T) *remotetest.Objects {
	t.Helper()
	t.Setenv("CATALOGD_BACKEND", "local")
	t.Setenv("CATALOGD_DB_PATH", filepath.Join(t.TempDir(), "catalogd.db"))
	t.Setenv("CATALOGD_OBJECT_STORE", "gcs")
	t.Setenv("CATALOGD_BUCKET", "backups")
	t.Setenv("CATALOGD_POLL_INTERVAL", "1ms")
	t.Setenv("CATALOGD_POLL_TIMEOUT", "5s")
	t.Setenv("CATALOGD_JWT_SECRET", "secret")

	objects := remotetest.NewObjects("backups")
	newApp = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
		return app.NewWithObjects(ctx, cfg, objects, logger)
	}
	t.Cleanup(func() {
		newApp = app.New
		migrateDryRun, restoreWait, cleanupDays = false, false, 0
		tokenSubject, tokenTTL, tokenAdmin = "", 24*time.Hour, true
	})
	return objects
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestToken(t *testing.T) {
	setupLocal(t)

	out, err := run(t, "token", "--subject", "ops@example.com", "--ttl", "1h")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	tokens, _ := auth.NewTokens("secret")
	claims, err := tokens.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if claims.Subject != "ops@example.com" || !claims.Admin {
		t.Errorf("claims = %+v", claims)
	}
}

func TestTokenWithoutSecret(t *testing.T) {
	setupLocal(t)
	t.Setenv("CATALOGD_JWT_SECRET", "")

	if _, err := run(t, "token", "--subject", "x"); err == nil {
		t.Error("expected error without secret")
	}
}

func TestMigrateBackupSnapshotsRestore(t *testing.T) {
	objects := setupLocal(t)

	// Seed the legacy document through the same backend the CLI opens.
	a, err := newApp(context.Background(), mustLoad(t), slog.Default())
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	a.Documents.Set(context.Background(), migrate.LegacyPath, map[string]any{
		"tarifas": []any{map[string]any{"nombre": "Fibra 600", "precio": "30,95"}},
	}, false)
	a.Close()

	out, err := run(t, "migrate", "--dry-run")
	if err != nil {
		t.Fatalf("migrate --dry-run: %v", err)
	}
	if !strings.Contains(out, "Dry run") || !strings.Contains(out, "Items: 1/1 (0 failed)") {
		t.Errorf("dry run output = %q", out)
	}
	migrateDryRun = false

	if out, err = run(t, "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if out, _ = run(t, "migrate"); !strings.Contains(out, "Already migrated (schema 2)") {
		t.Errorf("second migrate output = %q", out)
	}

	if out, err = run(t, "backup"); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if !strings.Contains(out, "Backup written to gs://backups/firestore/") {
		t.Errorf("backup output = %q", out)
	}

	out, err = run(t, "snapshots")
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if !strings.Contains(out, "KEY") || !strings.Contains(out, "gs://backups/firestore/") {
		t.Errorf("snapshots output = %q", out)
	}

	out, err = run(t, "restore", "--wait")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out, "Restore finished.") {
		t.Errorf("restore output = %q", out)
	}

	objects.Add("firestore/2000-01-01/0000/old", 10)
	out, err = run(t, "cleanup")
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !strings.Contains(out, "deleted 1") {
		t.Errorf("cleanup output = %q", out)
	}
}

func TestRestoreWithoutSnapshots(t *testing.T) {
	setupLocal(t)
	if _, err := run(t, "restore"); err == nil {
		t.Error("expected error with no snapshots")
	}
}

func mustLoad(t *testing.T) config.Config {
	t.Helper()
	c, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return c
}
