package supervisor

import (
	"fmt"
	"os"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05"

// startHeader is the synthetic line appended before each spawn
func startHeader(projectID int64, ts time.Time) string {
	return fmt.Sprintf("===== START %s | project=%d =====", ts.Format(timestampFormat), projectID)
}

// exitTrailer is the synthetic line appended after each exit
func exitTrailer(exitCode int, ts time.Time) string {
	return fmt.Sprintf("===== EXIT %s | code=%d =====", ts.Format(timestampFormat), exitCode)
}

// watchdogLine prefixes a resource-watchdog notice
func watchdogLine(msg string) string {
	return "[watchdog] " + msg
}

// supervisorLine prefixes a supervisor-injected notice
func supervisorLine(msg string) string {
	return "[hostingbot] " + msg
}

// appendLogLine appends one line to the project log, creating the file as
// needed. Best effort: the caller decides whether a failure matters.
func appendLogLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(line + "\n")
	return err
}
