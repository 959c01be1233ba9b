package facade

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
)

// LogPage is one page of a project's on-disk log, newest page first
type LogPage struct {
	ProjectID int64
	Name      string
	Running   bool
	Page      int
	Lines     []string
	From      int // 1-based line number of the first returned line
	To        int // 1-based line number of the last returned line
	Total     int
	Summary   string // "lines X–Y of N"
}

// LogsTail pages over the project log counted from the newest: page 0 is the
// newest LOG_PAGE_SIZE lines, page 1 the ones before it, and so on.
func (f *Facade) LogsTail(ctx context.Context, actor, projectID int64, page int) (*LogPage, error) {
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if page < 0 {
		return nil, errdefs.New(errdefs.KindInvalid, "page must not be negative")
	}

	data, err := os.ReadFile(f.layout.LogFile(project.OwnerID, project.ID))
	if err != nil && !os.IsNotExist(err) {
		return nil, errdefs.Internal(err)
	}

	lines := splitLogLines(string(data))
	from, to := pageBounds(len(lines), f.cfg.LogPageSize, page)

	lp := &LogPage{
		ProjectID: project.ID,
		Name:      project.Name,
		Running:   f.supervisor.IsLive(project.ID),
		Page:      page,
		Total:     len(lines),
		From:      from,
		To:        to,
	}
	if from > 0 {
		lp.Lines = lines[from-1 : to]
		lp.Summary = fmt.Sprintf("lines %d–%d of %d", from, to, len(lines))
	} else {
		lp.Summary = fmt.Sprintf("lines 0–0 of %d", len(lines))
	}
	return lp, nil
}

// splitLogLines splits the raw log, dropping the empty tail a trailing
// newline produces
func splitLogLines(raw string) []string {
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// pageBounds computes the 1-based inclusive line range of a page counted
// from the newest. Returns (0, 0) when the page is past the beginning.
func pageBounds(total, pageSize, page int) (from, to int) {
	if total == 0 || pageSize < 1 {
		return 0, 0
	}
	to = total - page*pageSize
	if to < 1 {
		return 0, 0
	}
	from = to - pageSize + 1
	if from < 1 {
		from = 1
	}
	return from, to
}
