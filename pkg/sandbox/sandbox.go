package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/metrics"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
)

// diagnosticTail caps how much installer output reaches the operator
const diagnosticTail = 1500

// Provisioner lazily creates per-project dependency sandboxes and runs
// vetted installs inside them
type Provisioner struct {
	cfg    *config.Config
	store  *store.Store
	layout *layout.Manager
	gate   *quota.Gate
	logger zerolog.Logger
}

// NewProvisioner creates a sandbox provisioner
func NewProvisioner(cfg *config.Config, st *store.Store, lm *layout.Manager, gate *quota.Gate) *Provisioner {
	return &Provisioner{
		cfg:    cfg,
		store:  st,
		layout: lm,
		gate:   gate,
		logger: log.WithComponent("sandbox"),
	}
}

// PythonPath returns the sandboxed interpreter for a project
func (p *Provisioner) PythonPath(ownerID, projectID int64) string {
	return filepath.Join(p.layout.SandboxRoot(ownerID, projectID), "bin", "python")
}

func (p *Provisioner) pipPath(ownerID, projectID int64) string {
	return filepath.Join(p.layout.SandboxRoot(ownerID, projectID), "bin", "pip")
}

// Exists reports whether the project's sandbox has been provisioned
func (p *Provisioner) Exists(ownerID, projectID int64) bool {
	_, err := os.Stat(p.PythonPath(ownerID, projectID))
	return err == nil
}

// Ensure provisions the sandbox on first need. Creation is bounded by the
// configured timeout; a half-created sandbox is removed so the next attempt
// starts clean.
func (p *Provisioner) Ensure(ctx context.Context, ownerID, projectID int64) error {
	if p.Exists(ownerID, projectID) {
		return nil
	}

	venvDir := p.layout.SandboxRoot(ownerID, projectID)
	p.logger.Info().Int64("project_id", projectID).Msg("Provisioning sandbox")

	ctx, cancel := context.WithTimeout(ctx, p.cfg.VenvTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.PythonBin, "-m", "venv", venvDir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		os.RemoveAll(venvDir)
		if ctx.Err() == context.DeadlineExceeded {
			return errdefs.New(errdefs.KindTimeout,
				"sandbox creation exceeded %s", p.cfg.VenvTimeout)
		}
		return errdefs.Wrap(errdefs.KindInternal, err,
			"sandbox creation failed: %s", tail(out.Bytes(), diagnosticTail))
	}
	return nil
}

// InstallPackage installs a single vetted package into the project sandbox.
// The daily install counter increments per attempt, success or not.
func (p *Provisioner) InstallPackage(ctx context.Context, actor, ownerID, projectID int64, spec string) error {
	if err := ValidatePackageSpec(spec); err != nil {
		return err
	}
	if err := p.gate.CheckDailyInstalls(ctx, ownerID); err != nil {
		return err
	}
	if err := p.Ensure(ctx, ownerID, projectID); err != nil {
		return err
	}

	p.store.AppendAudit(ctx, actor, "install.package", auditTarget(projectID), spec)
	return p.runPip(ctx, ownerID, projectID, []string{"install", spec})
}

// InstallRequirements installs the project's requirements.txt after vetting.
// One bad line rejects the whole manifest.
func (p *Provisioner) InstallRequirements(ctx context.Context, actor, ownerID, projectID int64) error {
	manifest := filepath.Join(p.layout.SourceRoot(ownerID, projectID), "requirements.txt")
	content, err := os.ReadFile(manifest)
	if os.IsNotExist(err) {
		return errdefs.New(errdefs.KindNotFound, "project has no requirements.txt")
	}
	if err != nil {
		return errdefs.Internal(err)
	}

	lines, err := VetRequirements(string(content))
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return errdefs.New(errdefs.KindInvalid, "requirements.txt has no installable lines")
	}

	if err := p.gate.CheckDailyInstalls(ctx, ownerID); err != nil {
		return err
	}
	if err := p.Ensure(ctx, ownerID, projectID); err != nil {
		return err
	}

	p.store.AppendAudit(ctx, actor, "install.requirements", auditTarget(projectID), "")
	return p.runPip(ctx, ownerID, projectID, append([]string{"install"}, lines...))
}

// runPip executes the sandbox pip under the install timeout. The attempt is
// counted before the outcome is known.
func (p *Provisioner) runPip(ctx context.Context, ownerID, projectID int64, args []string) error {
	if err := p.store.IncInstalls(ctx, ownerID, store.DayKey(time.Now())); err != nil {
		p.logger.Error().Err(err).Int64("user_id", ownerID).Msg("Failed to increment install counter")
	}
	metrics.InstallsTotal.Inc()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.InstallTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.pipPath(ownerID, projectID), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return errdefs.New(errdefs.KindTimeout,
			"install exceeded %s and was killed", p.cfg.InstallTimeout)
	}
	if err != nil {
		return errdefs.Wrap(errdefs.KindInternal, err,
			"install failed: %s", tail(out.Bytes(), diagnosticTail))
	}

	p.logger.Info().Int64("project_id", projectID).Msg("Install finished")
	return nil
}

// Remove deletes a project's sandbox
func (p *Provisioner) Remove(ownerID, projectID int64) error {
	return os.RemoveAll(p.layout.SandboxRoot(ownerID, projectID))
}

func auditTarget(projectID int64) string {
	return fmt.Sprintf("project:%d", projectID)
}

// tail returns the last n bytes of b as a string
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
