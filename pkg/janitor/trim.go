package janitor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
)

const (
	// trimThreshold is the log size beyond which a file gets truncated
	trimThreshold = 5 * 1024 * 1024

	// trimKeepLines is how many trailing lines survive a truncation
	trimKeepLines = 2000
)

// TrimLogs truncates every project log above the size threshold down to its
// last lines. Returns how many files were trimmed.
func TrimLogs(lm *layout.Manager) (int, error) {
	root := filepath.Join(lm.DataRoot(), "projects")
	trimmed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != "run.log" {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() <= trimThreshold {
			return nil
		}
		if err := TrimLogFile(path, trimKeepLines); err == nil {
			trimmed++
		}
		return nil
	})
	if os.IsNotExist(err) {
		return trimmed, nil
	}
	return trimmed, err
}

// TrimLogFile rewrites a log file keeping only its last keep lines
func TrimLogFile(path string, keep int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := strings.Split(string(data), "\n")
	// A trailing newline yields one empty trailing element; drop it before
	// counting
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if len(lines) <= keep {
		return nil
	}

	kept := strings.Join(lines[len(lines)-keep:], "\n") + "\n"

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(kept), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
