package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/metrics"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
)

// Upload is one user-submitted source payload, either a single .py file or a
// zip archive
type Upload struct {
	OwnerID   int64
	Name      string // desired project name; ignored for updates
	ProjectID int64  // 0 creates a new project, >0 updates an existing one
	Filename  string
	Data      []byte
}

// Result reports the outcome of an ingest. When PickToken is non-empty the
// ingest is suspended awaiting an entrypoint choice from the operator.
type Result struct {
	ProjectID  int64
	Entrypoint string
	Created    bool
	Candidates []string
	PickToken  string
}

// pendingPick is a staged upload parked until the operator picks an
// entrypoint
type pendingPick struct {
	upload     Upload
	staging    string
	srcRoot    string
	candidates []string
	createdAt  time.Time
}

// Ingestor validates, stages and commits uploads
type Ingestor struct {
	cfg     *config.Config
	store   *store.Store
	layout  *layout.Manager
	gate    *quota.Gate
	checker SyntaxChecker
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]*pendingPick
}

// NewIngestor creates an upload ingestor
func NewIngestor(cfg *config.Config, st *store.Store, lm *layout.Manager, gate *quota.Gate, checker SyntaxChecker) *Ingestor {
	if checker == nil {
		checker = &PythonChecker{PythonBin: cfg.PythonBin}
	}
	return &Ingestor{
		cfg:     cfg,
		store:   st,
		layout:  lm,
		gate:    gate,
		checker: checker,
		logger:  log.WithComponent("ingest"),
		pending: make(map[string]*pendingPick),
	}
}

var nameJunk = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName normalizes a display name. Idempotent: sanitizing a sanitized
// name is a no-op.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = nameJunk.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > 48 {
		name = strings.Trim(name[:48], "-.")
	}
	if name == "" {
		name = "project"
	}
	return name
}

// Submit runs the full ingest pipeline: admission, staging, static checks,
// entrypoint detection, commit. No catalog or filesystem mutation happens
// before admission passes.
func (i *Ingestor) Submit(ctx context.Context, up Upload) (*Result, error) {
	// Admission, in order: ban, daily uploads, slots (new only), size cap
	if err := i.gate.CheckBanned(ctx, up.OwnerID); err != nil {
		return nil, err
	}
	if err := i.gate.CheckDailyUploads(ctx, up.OwnerID); err != nil {
		return nil, err
	}
	if up.ProjectID == 0 {
		if err := i.gate.CheckProjectSlots(ctx, up.OwnerID); err != nil {
			return nil, err
		}
	} else {
		if _, err := i.store.GetProject(ctx, up.ProjectID); err != nil {
			return nil, err
		}
	}
	if int64(len(up.Data)) > i.cfg.UploadMaxBytes {
		return nil, errdefs.New(errdefs.KindQuotaExceeded,
			"upload exceeds the %d MiB limit", i.cfg.UploadMaxBytes/(1024*1024))
	}

	staging, err := i.stage(up)
	if err != nil {
		return nil, err
	}

	res, err := i.inspectAndCommit(ctx, up, staging)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}
	if res.PickToken == "" {
		os.RemoveAll(staging)
	}
	return res, nil
}

// stage writes the payload into a fresh staging directory
func (i *Ingestor) stage(up Upload) (string, error) {
	staging := filepath.Join(i.layout.StagingRoot(), uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", errdefs.Internal(err)
	}

	switch {
	case strings.HasSuffix(up.Filename, ".zip"):
		if err := ExtractZip(up.Data, staging); err != nil {
			os.RemoveAll(staging)
			return "", err
		}
	case strings.HasSuffix(up.Filename, ".py"):
		name := filepath.Base(up.Filename)
		if err := os.WriteFile(filepath.Join(staging, name), up.Data, 0644); err != nil {
			os.RemoveAll(staging)
			return "", errdefs.Internal(err)
		}
	default:
		os.RemoveAll(staging)
		return "", errdefs.New(errdefs.KindInvalid, "unsupported upload type %q, send a .py file or a .zip archive", filepath.Ext(up.Filename))
	}
	return staging, nil
}

// inspectAndCommit validates the staged tree and either commits it or parks
// it for an entrypoint pick
func (i *Ingestor) inspectAndCommit(ctx context.Context, up Upload, staging string) (*Result, error) {
	srcRoot, manifest, err := sourceRoot(staging)
	if err != nil {
		return nil, err
	}

	if err := checkTree(ctx, i.checker, srcRoot); err != nil {
		return nil, err
	}

	candidates, err := sourceFiles(srcRoot)
	if err != nil {
		return nil, errdefs.Internal(err)
	}
	if len(candidates) == 0 {
		return nil, errdefs.New(errdefs.KindInvalid, "upload contains no source files")
	}

	if manifest != nil {
		if up.Name == "" && manifest.Name != "" {
			up.Name = manifest.Name
		}
		if ep := manifest.Entrypoint; ep != "" {
			if _, err := os.Stat(filepath.Join(srcRoot, filepath.FromSlash(ep))); err == nil {
				return i.commit(ctx, up, srcRoot, ep)
			}
		}
	}

	entrypoint, ok := DetectEntrypoint(candidates)
	if !ok {
		token := uuid.NewString()
		i.mu.Lock()
		i.pending[token] = &pendingPick{
			upload:     up,
			staging:    staging,
			srcRoot:    srcRoot,
			candidates: candidates,
			createdAt:  time.Now(),
		}
		i.mu.Unlock()
		return &Result{Candidates: candidates, PickToken: token}, nil
	}

	return i.commit(ctx, up, srcRoot, entrypoint)
}

// Resolve completes a suspended ingest with the operator's entrypoint choice
func (i *Ingestor) Resolve(ctx context.Context, token, choice string) (*Result, error) {
	i.mu.Lock()
	p, ok := i.pending[token]
	if ok {
		delete(i.pending, token)
	}
	i.mu.Unlock()

	if !ok {
		return nil, errdefs.New(errdefs.KindNotFound, "no pending upload for that pick")
	}
	defer os.RemoveAll(p.staging)

	valid := false
	for _, c := range p.candidates {
		if c == choice {
			valid = true
			break
		}
	}
	if !valid {
		return nil, errdefs.New(errdefs.KindInvalid, "%q is not one of the candidate entrypoints", choice)
	}

	return i.commit(ctx, p.upload, p.srcRoot, choice)
}

// commit atomically replaces the project source and updates the catalog.
// For a new project the filesystem swap is the last step and a failed swap
// rolls the new row back; for an update the source is swapped first and the
// entrypoint is updated after it.
func (i *Ingestor) commit(ctx context.Context, up Upload, srcRoot, entrypoint string) (*Result, error) {
	incoming := layout.DirSize(srcRoot)
	extra := incoming
	if up.ProjectID != 0 {
		project, err := i.store.GetProject(ctx, up.ProjectID)
		if err != nil {
			return nil, err
		}
		extra -= layout.DirSize(i.layout.SourceRoot(project.OwnerID, project.ID))
	}
	if err := i.gate.CheckDisk(ctx, up.OwnerID, extra); err != nil {
		return nil, err
	}

	res := &Result{Entrypoint: entrypoint}

	if up.ProjectID == 0 {
		id, err := i.store.CreateProject(ctx, up.OwnerID, up.OwnerID, SanitizeName(up.Name), entrypoint, true)
		if err != nil {
			return nil, errdefs.Internal(err)
		}
		res.ProjectID = id
		res.Created = true

		if err := i.replaceSource(up.OwnerID, id, srcRoot); err != nil {
			// The row was created above; undo it so a failed commit leaves
			// no catalog trace
			_ = i.store.DeleteProject(ctx, up.OwnerID, id)
			return nil, err
		}
	} else {
		project, err := i.store.GetProject(ctx, up.ProjectID)
		if err != nil {
			return nil, err
		}
		res.ProjectID = project.ID

		if err := i.replaceSource(project.OwnerID, project.ID, srcRoot); err != nil {
			return nil, err
		}
		if err := i.store.SetEntrypoint(ctx, up.OwnerID, project.ID, entrypoint); err != nil {
			return nil, errdefs.Internal(err)
		}
	}

	if err := i.store.IncUploads(ctx, up.OwnerID, store.DayKey(time.Now())); err != nil {
		i.logger.Error().Err(err).Int64("user_id", up.OwnerID).Msg("Failed to increment upload counter")
	}
	metrics.UploadsTotal.Inc()

	i.logger.Info().
		Int64("user_id", up.OwnerID).
		Int64("project_id", res.ProjectID).
		Str("entrypoint", entrypoint).
		Bool("created", res.Created).
		Msg("Upload committed")

	return res, nil
}

// replaceSource swaps the staged tree into the project's src directory
func (i *Ingestor) replaceSource(ownerID, projectID int64, srcRoot string) error {
	if err := i.layout.EnsureProjectDirs(ownerID, projectID); err != nil {
		return errdefs.Internal(err)
	}

	dest := i.layout.SourceRoot(ownerID, projectID)
	if err := os.RemoveAll(dest); err != nil {
		return errdefs.Internal(err)
	}
	if err := moveTree(srcRoot, dest); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// moveTree renames when possible and falls back to a copy when the staging
// area sits on a different filesystem
func moveTree(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyTree(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

// SweepStaleStagings drops parked picks older than ttl and removes any
// orphaned staging directories left behind by earlier runs. Returns how many
// trees were removed.
func (i *Ingestor) SweepStaleStagings(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	removed := 0

	i.mu.Lock()
	keep := make(map[string]bool)
	for token, p := range i.pending {
		if p.createdAt.Before(cutoff) {
			delete(i.pending, token)
			os.RemoveAll(p.staging)
			removed++
		} else {
			keep[filepath.Base(p.staging)] = true
		}
	}
	i.mu.Unlock()

	entries, err := os.ReadDir(i.layout.StagingRoot())
	if err != nil {
		return removed
	}
	for _, e := range entries {
		if keep[e.Name()] {
			continue
		}
		full := filepath.Join(i.layout.StagingRoot(), e.Name())
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(full); err == nil {
			removed++
		}
	}

	if removed > 0 {
		i.logger.Info().Int("removed", removed).Msg("Swept stale staging directories")
	}
	return removed
}

// PendingCount returns the number of uploads parked for an entrypoint pick
func (i *Ingestor) PendingCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
