package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	iconError   = "dialog-error"
	iconSuccess = "dialog-apply"

	popupLines = 20
	popupWidth = 120

	// sendTimeout bounds a single notifier process.
	sendTimeout = 5 * time.Second
)

// Desktop shows notifications with the platform's notifier: notify-send on
// Linux and osascript on macOS. Each popup is sent from its own goroutine
// so a stuck notifier never holds up the caller.
type Desktop struct {
	app     string
	send    func(ctx context.Context, title, body string, kind Kind) error
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// NewDesktop returns a desktop sink, or an error when the platform has no
// usable notifier.
func NewDesktop(app string) (*Desktop, error) {
	d := &Desktop{
		app:     app,
		timeout: sendTimeout,
		logger:  log.Default().WithPrefix("notify"),
	}

	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		if _, err := exec.LookPath("notify-send"); err != nil {
			return nil, fmt.Errorf("notify-send not found")
		}
		d.send = d.sendNotifySend
	case "darwin":
		d.send = d.sendOsascript
	default:
		return nil, fmt.Errorf("desktop notifications not supported on %s", runtime.GOOS)
	}
	return d, nil
}

// Notify starts delivering a popup and returns. Delivery failures and
// timeouts are logged and dropped.
func (d *Desktop) Notify(title, body string, kind Kind) {
	body = Summarize(body, popupLines, popupWidth)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.send(ctx, title, body, kind); err != nil {
			d.logger.Warn("desktop notification failed", "title", title, "err", err)
		}
	}()
}

// Close waits for popups still being delivered. Each is bounded by the send
// timeout.
func (d *Desktop) Close() error {
	d.wg.Wait()
	return nil
}

func (d *Desktop) sendNotifySend(ctx context.Context, title, body string, kind Kind) error {
	icon, urgency := iconSuccess, "normal"
	if kind == Error {
		icon, urgency = iconError, "critical"
	}
	cmd := exec.CommandContext(ctx, "notify-send",
		"--app-name", d.app,
		"--icon", icon,
		"--urgency", urgency,
		title, body)
	return cmd.Run()
}

func (d *Desktop) sendOsascript(ctx context.Context, title, body string, _ Kind) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s" subtitle "%s"`,
		appleScriptEscape(body), appleScriptEscape(d.app), appleScriptEscape(title))
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	return cmd.Run()
}

var appleScriptReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// appleScriptEscape makes s safe inside a double-quoted AppleScript string.
// Only backslash and quote are special there; everything else is literal.
func appleScriptEscape(s string) string {
	return appleScriptReplacer.Replace(s)
}
