package ingest

import (
	"bytes"
	"context"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
)

// checkScript asks the interpreter's own parser for a verdict. On failure it
// prints "line|message" so the offender can be reported precisely.
const checkScript = `import ast, sys
path = sys.argv[1]
try:
    with open(path, "rb") as f:
        ast.parse(f.read(), filename=path)
except SyntaxError as e:
    print("%d|%s" % (e.lineno or 0, e.msg or "invalid syntax"))
    sys.exit(1)
`

// SyntaxChecker statically validates one source file
type SyntaxChecker interface {
	Check(ctx context.Context, path string) error
}

// PythonChecker validates sources with the host interpreter's ast parser
type PythonChecker struct {
	PythonBin string
}

// Check parses one file; a parse failure returns a classified syntax error
// carrying the offending line and message
func (c *PythonChecker) Check(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.PythonBin, "-c", checkScript, path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errdefs.New(errdefs.KindTimeout, "syntax check timed out for %s", filepath.Base(path))
	}

	line := 0
	msg := "invalid syntax"
	if parts := strings.SplitN(strings.TrimSpace(out.String()), "|", 2); len(parts) == 2 {
		if n, err := strconv.Atoi(parts[0]); err == nil {
			line = n
		}
		msg = parts[1]
	}
	return errdefs.NewSyntax(filepath.Base(path), line, msg)
}

// checkTree parses every source file under root, lexicographic order, and
// fails on the first offender with its path relative to root.
func checkTree(ctx context.Context, checker SyntaxChecker, root string) error {
	files, err := sourceFiles(root)
	if err != nil {
		return errdefs.Internal(err)
	}

	for _, rel := range files {
		if err := checker.Check(ctx, filepath.Join(root, rel)); err != nil {
			if se, ok := errdefs.AsSyntax(err); ok {
				// Re-anchor the offender path relative to the source root
				return errdefs.NewSyntax(rel, se.Line, se.Message)
			}
			return err
		}
	}
	return nil
}

// sourceFiles enumerates the .py files under root, relative paths sorted
// lexicographically
func sourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".py") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	// WalkDir yields lexical order per directory only; keep the full-path
	// guarantee explicit for callers that depend on it
	sort.Strings(files)
	return files, nil
}
