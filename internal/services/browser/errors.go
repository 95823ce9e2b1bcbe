package browser

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// ErrBrowserNotFound means no usable Chrome/Chromium executable could be started
var ErrBrowserNotFound = errors.New("browser executable not found")

const browserNotFoundHint = "install Google Chrome or Chromium, or pass --chrome-path (env XHS_CHROME_PATH) pointing at an existing executable"

// classifyLaunchError maps a missing executable onto ErrBrowserNotFound and leaves other errors unchanged
func classifyLaunchError(err error, execPath string) error {
	if err == nil || !isMissingExecutable(err) {
		return err
	}
	if execPath != "" {
		return fmt.Errorf("%w at %s: %s: %w", ErrBrowserNotFound, execPath, browserNotFoundHint, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrBrowserNotFound, browserNotFoundHint, err)
}

func isMissingExecutable(err error) bool {
	if errors.Is(err, ErrBrowserNotFound) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "executable file not found") ||
		strings.Contains(msg, "no such file or directory") ||
		strings.Contains(msg, "cannot find the file specified")
}
