package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/nudgeapp/nudge/internal/models"
)

// notifySendBin is the freedesktop notification client the desktop
// notifier shells out to.
const notifySendBin = "notify-send"

// Desktop implements Notifier by invoking notify-send.
type Desktop struct {
	bin string
}

// NewDesktop creates a desktop notifier. An empty bin uses notify-send.
func NewDesktop(bin string) *Desktop {
	if bin == "" {
		bin = notifySendBin
	}
	return &Desktop{bin: bin}
}

// Name returns the notifier identifier.
func (d *Desktop) Name() string {
	return "desktop"
}

// Available reports whether the notification binary is on PATH.
func (d *Desktop) Available() bool {
	_, err := exec.LookPath(d.bin)
	return err == nil
}

// Deliver invokes the notification binary with the content.
func (d *Desktop) Deliver(ctx context.Context, n models.Notification) error {
	args := []string{"--app-name", "nudge"}
	if n.Category == models.CategoryTaskOverdue {
		args = append(args, "--urgency", "critical")
	}
	args = append(args, n.Title, n.Body)

	cmd := exec.CommandContext(ctx, d.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", d.bin, err, stderr.String())
	}
	return nil
}
