package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	adapthttp "datausage/internal/adapter/http"
	"datausage/internal/adapter/memory"
	"datausage/internal/app"
	"datausage/internal/domain"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, remoteURL, token string) string {
	t.Helper()
	t.Setenv("DATAUSAGE_REMOTE_URL", "")
	t.Setenv("DATAUSAGE_REMOTE_TOKEN", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "datausage.toml")
	content := fmt.Sprintf(`[device]
database_path = %q
log_level = "error"

[remote]
kind = "http"
url = %q
token = %q
`, filepath.Join(dir, "local.db"), remoteURL, token)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInitWritesConfigOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datausage.toml")
	out, err := run(t, "", "init", path)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := run(t, "", "init", path); err == nil {
		t.Error("expected error when file exists")
	}
}

func TestHashTokenFromStdin(t *testing.T) {
	out, err := run(t, "s3cret-device-token\n", "hash-token")
	if err != nil {
		t.Fatalf("hash-token: %v", err)
	}
	hash := strings.TrimSpace(out)
	auth := app.NewAuthService([]string{hash}, nil)
	if _, err := auth.Authenticate(t.Context(), "s3cret-device-token"); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}

func TestRecordAndStatus(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:8080", "")

	if _, err := run(t, "", "--config", cfg, "record", "--bytes", "1000"); err != nil {
		t.Fatalf("record baseline: %v", err)
	}
	out, err := run(t, "", "--config", cfg, "record", "--bytes", "3000")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !strings.Contains(out, "used today") {
		t.Errorf("record output = %q", out)
	}

	out, err = run(t, "", "--config", cfg, "status", "--days", "3", "--unit", "B")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "2000.00") {
		t.Errorf("status missing today's usage:\n%s", out)
	}
	if !strings.Contains(out, "old data never synced") {
		t.Errorf("status missing sync line:\n%s", out)
	}
}

func TestRecordRequiresBytes(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:8080", "")
	if _, err := run(t, "", "--config", cfg, "record"); err == nil {
		t.Error("expected error without --bytes")
	}
}

func TestPlanSetAndShow(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:8080", "")

	_, err := run(t, "", "--config", cfg, "plan", "set",
		"--start", "2026-02-01", "--end", "2026-02-28",
		"--amount", "2048", "--daily-limit", "100", "--unit", "MB")
	if err != nil {
		t.Fatalf("plan set: %v", err)
	}

	out, err := run(t, "", "--config", cfg, "plan", "show")
	if err != nil {
		t.Fatalf("plan show: %v", err)
	}
	if !strings.Contains(out, `"dataAmount": 2`) {
		t.Errorf("plan amount not stored in GB:\n%s", out)
	}
}

func TestPlanSetRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t, "http://localhost:8080", "")
	tests := []struct {
		name string
		args []string
	}{
		{"bad unit", []string{"--start", "2026-02-01", "--end", "2026-02-28", "--unit", "TB"}},
		{"bad date", []string{"--start", "02/01/2026", "--end", "2026-02-28"}},
		{"end before start", []string{"--start", "2026-02-28", "--end", "2026-02-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfg, "plan", "set"}, tt.args...)
			if _, err := run(t, "", args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSyncPushesToRemoteAPI(t *testing.T) {
	hash, err := app.HashToken("device-token-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	remote := memory.NewRemote()
	srv := adapthttp.New(remote, app.NewAuthService([]string{hash}, nil), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := writeConfig(t, ts.URL, "device-token-0123456789")
	if _, err := run(t, "", "--config", cfg, "record", "--bytes", "0"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "--config", cfg, "record", "--bytes", "5000"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "--config", cfg, "sync")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, `"todaySynced": true`) {
		t.Errorf("report = %s", out)
	}

	var found bool
	for _, r := range remote.Usage() {
		if domain.SameDay(r.Date, time.Now()) && r.DailyUsedData == 5000 {
			found = true
		}
	}
	if !found {
		t.Errorf("remote usage = %+v, want today's 5000 bytes", remote.Usage())
	}
}

func TestSyncBadTokenFailsSoft(t *testing.T) {
	remote := memory.NewRemote()
	hash, err := app.HashToken("right-token-0123456789")
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(adapthttp.New(remote, app.NewAuthService([]string{hash}, nil), nil).Handler())
	t.Cleanup(ts.Close)

	cfg := writeConfig(t, ts.URL, "wrong-token-0123456789")
	if _, err := run(t, "", "--config", cfg, "record", "--bytes", "10"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "--config", cfg, "sync")
	if err != nil {
		t.Fatalf("inaccessible account should not fail sync: %v", err)
	}
	if !strings.Contains(out, `"todaySynced": false`) {
		t.Errorf("report = %s", out)
	}
	if n := len(remote.Usage()); n != 0 {
		t.Errorf("remote has %d records, want 0", n)
	}
}
