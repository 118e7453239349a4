package app

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/specialistvlad/imageburst/internal/config"
	"github.com/specialistvlad/imageburst/internal/registry"
	"github.com/specialistvlad/imageburst/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. When fs is
// not nil it replaces the OS filesystem the images are read from.
func SetupAppTest(t *testing.T, cfg *Config, loader config.Loader, fs billy.Filesystem, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	testApp, err := NewApp(logBuffer, cfg, loader, modules...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if fs != nil {
		testApp.fs = fs
	}

	t.Cleanup(func() {
		if os.Getenv("IMAGEBURST_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
