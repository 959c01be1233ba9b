package facade

import (
	"context"
	"regexp"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// Start launches a project's child process
func (f *Facade) Start(ctx context.Context, actor, projectID int64) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	return f.supervisor.Start(ctx, actor, projectID)
}

// Stop terminates a project's child process
func (f *Facade) Stop(ctx context.Context, actor, projectID int64) error {
	if err := f.gate.CheckRate(actor); err != nil {
		return err
	}
	if err := f.gate.CheckBanned(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	return f.supervisor.Stop(ctx, actor, projectID, types.RunReasonStop)
}

// Restart stops then starts a project as one logical operation
func (f *Facade) Restart(ctx context.Context, actor, projectID int64) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	return f.supervisor.Restart(ctx, actor, projectID)
}

// envKeyPattern is the accepted grammar for environment variable names
var envKeyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]{0,50}$`)

// ValidateEnvKey rejects names outside the environment key grammar
func ValidateEnvKey(key string) error {
	if !envKeyPattern.MatchString(key) {
		return errdefs.New(errdefs.KindInvalid,
			"invalid env key %q: use A-Z, 0-9 and _, starting with a letter or _", key)
	}
	return nil
}

// EnvList returns a project's environment variable names. Values stay
// sealed; only the child process ever sees them.
func (f *Facade) EnvList(ctx context.Context, actor, projectID int64) ([]string, error) {
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return nil, err
	}
	keys, err := f.store.ListEnvKeys(ctx, projectID)
	if err != nil {
		return nil, errdefs.Internal(err)
	}
	return keys, nil
}

// EnvSet stores one environment variable, encrypted at rest
func (f *Facade) EnvSet(ctx context.Context, actor, projectID int64, key, value string) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	if err := ValidateEnvKey(key); err != nil {
		return err
	}
	if err := f.store.SetEnv(ctx, actor, projectID, key, value); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// EnvDelete removes one environment variable
func (f *Facade) EnvDelete(ctx context.Context, actor, projectID int64, key string) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	if err := ValidateEnvKey(key); err != nil {
		return err
	}
	if err := f.store.DeleteEnv(ctx, actor, projectID, key); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// InstallPackage installs a single vetted package into the project sandbox
func (f *Facade) InstallPackage(ctx context.Context, actor, projectID int64, spec string) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return f.sandbox.InstallPackage(ctx, actor, project.OwnerID, project.ID, spec)
}

// InstallRequirements installs the project's vetted requirements.txt
func (f *Facade) InstallRequirements(ctx context.Context, actor, projectID int64) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return err
	}
	return f.sandbox.InstallRequirements(ctx, actor, project.OwnerID, project.ID)
}
