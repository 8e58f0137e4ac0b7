package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	tempDir := t.TempDir()
	cache := NewConfigCache(tempDir)

	changes := make(chan map[string]*Config, 4)
	w := NewWatcher(cache, func(configs map[string]*Config) {
		changes <- configs
	})
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	content := "url: https://example.com/feed.xml\nsettings:\n  enabled: true\n"
	if err := os.WriteFile(filepath.Join(tempDir, "news.yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case configs := <-changes:
		if _, ok := configs["news"]; !ok {
			t.Errorf("Expected 'news' config after reload, got %v", configs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := NewWatcher(NewConfigCache(filepath.Join(t.TempDir(), "missing")), nil)

	if err := w.Run(context.Background()); err == nil {
		t.Error("Expected error for missing directory")
	}
}
