package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deribit_book/internal/domain"
	"deribit_book/internal/infra/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBootstrap_Initialize(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
app:
  name: deribit-book
  version: test
logging:
  level: debug
  dir: `+filepath.Join(dir, "logs")+`
storage:
  enabled: true
  path: `+filepath.Join(dir, "journal.db")+`
`)

	b := NewBootstrap(path)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Close()

	if b.Config.Channel() != "book.BTC-PERPETUAL.100ms" {
		t.Errorf("Channel() = %q", b.Config.Channel())
	}
	if b.Journal() == nil {
		t.Fatal("journal should be available when storage is enabled")
	}
	if err := b.Journal().SaveResyncEvent(&domain.ResyncEvent{Reason: domain.ResyncReasonGap}); err != nil {
		t.Errorf("SaveResyncEvent() error = %v", err)
	}
}

func TestBootstrap_StorageDisabled(t *testing.T) {
	path := writeConfig(t, "logging:\n  dir: "+filepath.Join(t.TempDir(), "logs")+"\n")

	b := NewBootstrap(path)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Close()

	if j := b.Journal(); j != nil {
		t.Errorf("Journal() = %v, want nil", j)
	}
}

func TestBootstrap_MissingConfig(t *testing.T) {
	b := NewBootstrap(filepath.Join(t.TempDir(), "nope.yaml"))
	err := b.Initialize()
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Errorf("Initialize() error = %v, want ErrConfigNotFound", err)
	}
}

func TestNewBootstrap_DefaultPath(t *testing.T) {
	if got := NewBootstrap("").ConfigPath; got != DefaultConfigPath {
		t.Errorf("ConfigPath = %q, want %q", got, DefaultConfigPath)
	}
}

func TestBootstrap_LogsJournalHistory(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")

	prior, err := storage.NewStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	prior.SaveResyncEvent(&domain.ResyncEvent{Instrument: "BTC-PERPETUAL", Reason: domain.ResyncReasonGap})
	prior.SaveQuoteSample(&domain.QuoteSample{Instrument: "BTC-PERPETUAL", ChangeID: 42})
	prior.Close()

	logDir := filepath.Join(dir, "logs")
	path := writeConfig(t, "logging:\n  dir: "+logDir+"\nstorage:\n  enabled: true\n  path: "+dbPath+"\n")

	b := NewBootstrap(path)
	if err := b.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer b.Close()

	data, err := os.ReadFile(filepath.Join(logDir, "book.log"))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"resyncs":1`, `"gaps":1`, `"last_resync_reason":"gap"`, `"last_sample_change_id":42`} {
		if !strings.Contains(out, want) {
			t.Errorf("journal summary missing %s in %s", want, out)
		}
	}
}
