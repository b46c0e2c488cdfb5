package process

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// RestartExplorer kills the shell and starts a fresh explorer.exe so that
// removed pins and shell extensions are released.
func (t *Terminator) RestartExplorer(ctx context.Context) error {
	t.Terminate(ctx, []string{"explorer.exe"}, 5*time.Second)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}

	explorer := filepath.Join(os.Getenv("SystemRoot"), "explorer.exe")
	if err := exec.Command(explorer).Start(); err != nil {
		logging.Warn("Failed to restart explorer", "error", err)
		return err
	}
	logging.Info("Restarted explorer")
	return nil
}
