package facade

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/ingest"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/log"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/sandbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/supervisor"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/types"
)

// Facade is the transport-agnostic command surface the front end drives.
// Project-scoped operations authorize the caller, admin operations check the
// admin set, mutating operations run admission, and every operation returns a
// classified error — never a raw one.
type Facade struct {
	cfg        *config.Config
	store      *store.Store
	layout     *layout.Manager
	gate       *quota.Gate
	sandbox    *sandbox.Provisioner
	supervisor *supervisor.Supervisor
	ingestor   *ingest.Ingestor
	events     *events.Broker
	logger     zerolog.Logger
}

// New wires the facade over the assembled components
func New(cfg *config.Config, st *store.Store, lm *layout.Manager, gate *quota.Gate,
	sb *sandbox.Provisioner, sup *supervisor.Supervisor, ing *ingest.Ingestor,
	broker *events.Broker) *Facade {
	return &Facade{
		cfg:        cfg,
		store:      st,
		layout:     lm,
		gate:       gate,
		sandbox:    sb,
		supervisor: sup,
		ingestor:   ing,
		events:     broker,
		logger:     log.WithComponent("facade"),
	}
}

// RegisterContact records a user on any interaction
func (f *Facade) RegisterContact(ctx context.Context, userID int64, handle string) error {
	if err := f.store.UpsertUser(ctx, userID, handle); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// AcceptTOS records the caller's terms acknowledgement; the front end's
// admission gate drives this
func (f *Facade) AcceptTOS(ctx context.Context, userID int64) error {
	if err := f.store.SetTOSAccepted(ctx, userID, true); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// MarkVerified records the caller's channel-membership verification
func (f *Facade) MarkVerified(ctx context.Context, userID int64, verified bool) error {
	if err := f.store.SetVerified(ctx, userID, verified); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// authorize loads a project and verifies the caller is its owner or an admin
func (f *Facade) authorize(ctx context.Context, actor, projectID int64) (*types.Project, error) {
	project, err := f.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actor && !f.cfg.IsAdmin(actor) {
		return nil, errdefs.New(errdefs.KindForbidden, "this project is not yours")
	}
	return project, nil
}

// requireAdmin verifies the caller is in the admin set
func (f *Facade) requireAdmin(actor int64) error {
	if !f.cfg.IsAdmin(actor) {
		return errdefs.New(errdefs.KindForbidden, "admin access required")
	}
	return nil
}

// admit runs the common admission front: rate limit, ban, gate state
func (f *Facade) admit(ctx context.Context, actor int64) error {
	if err := f.gate.CheckRate(actor); err != nil {
		return err
	}
	if err := f.gate.CheckBanned(ctx, actor); err != nil {
		return err
	}
	return f.gate.CheckGate(ctx, actor)
}

// ProjectView is a project row enriched with its live state
type ProjectView struct {
	Project *types.Project
	Running bool
	OpenRun *types.Run
}

// ProjectCreate ingests a new project from an uploaded file or archive
func (f *Facade) ProjectCreate(ctx context.Context, actor int64, name, filename string, data []byte) (*ingest.Result, error) {
	if err := f.admit(ctx, actor); err != nil {
		return nil, err
	}
	return f.ingestor.Submit(ctx, ingest.Upload{
		OwnerID:  actor,
		Name:     name,
		Filename: filename,
		Data:     data,
	})
}

// ProjectUpdate replaces an existing project's source
func (f *Facade) ProjectUpdate(ctx context.Context, actor, projectID int64, filename string, data []byte) (*ingest.Result, error) {
	if err := f.admit(ctx, actor); err != nil {
		return nil, err
	}
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	return f.ingestor.Submit(ctx, ingest.Upload{
		OwnerID:   project.OwnerID,
		ProjectID: project.ID,
		Filename:  filename,
		Data:      data,
	})
}

// ResolveEntrypoint completes an ingest parked on an entrypoint pick
func (f *Facade) ResolveEntrypoint(ctx context.Context, actor int64, token, choice string) (*ingest.Result, error) {
	if err := f.gate.CheckBanned(ctx, actor); err != nil {
		return nil, err
	}
	return f.ingestor.Resolve(ctx, token, choice)
}

// ProjectRename changes a project's display name
func (f *Facade) ProjectRename(ctx context.Context, actor, projectID int64, name string) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	return f.store.RenameProject(ctx, actor, projectID, ingest.SanitizeName(name))
}

// ProjectSetAutostart flips a project's autostart flag
func (f *Facade) ProjectSetAutostart(ctx context.Context, actor, projectID int64, autostart bool) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	if _, err := f.authorize(ctx, actor, projectID); err != nil {
		return err
	}
	return f.store.SetAutostart(ctx, actor, projectID, autostart)
}

// ProjectDelete stops a live project, removes its catalog rows and deletes
// its filesystem tree
func (f *Facade) ProjectDelete(ctx context.Context, actor, projectID int64) error {
	if err := f.admit(ctx, actor); err != nil {
		return err
	}
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return err
	}

	if err := f.supervisor.Stop(ctx, actor, projectID, types.RunReasonStop); err != nil &&
		!errdefs.IsKind(err, errdefs.KindNotRunning) {
		return err
	}

	if err := f.store.DeleteProject(ctx, actor, projectID); err != nil {
		return err
	}
	if err := f.layout.RemoveProject(project.OwnerID, projectID); err != nil {
		return errdefs.Internal(err)
	}
	return nil
}

// ProjectGet returns one project with its live state
func (f *Facade) ProjectGet(ctx context.Context, actor, projectID int64) (*ProjectView, error) {
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	view := &ProjectView{Project: project, Running: f.supervisor.IsLive(projectID)}
	if view.Running {
		if run, err := f.store.OpenRun(ctx, projectID); err == nil {
			view.OpenRun = run
		}
	}
	return view, nil
}

// ProjectList returns the caller's projects with their live state
func (f *Facade) ProjectList(ctx context.Context, actor int64) ([]*ProjectView, error) {
	projects, err := f.store.ListProjectsByOwner(ctx, actor)
	if err != nil {
		return nil, errdefs.Internal(err)
	}

	views := make([]*ProjectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, &ProjectView{Project: p, Running: f.supervisor.IsLive(p.ID)})
	}
	return views, nil
}

// ProjectExport packages a project as a portable archive. Returns the
// archive bytes and a suggested filename.
func (f *Facade) ProjectExport(ctx context.Context, actor, projectID int64) ([]byte, string, error) {
	if err := f.gate.CheckRate(actor); err != nil {
		return nil, "", err
	}
	if err := f.gate.CheckBanned(ctx, actor); err != nil {
		return nil, "", err
	}
	project, err := f.authorize(ctx, actor, projectID)
	if err != nil {
		return nil, "", err
	}

	m := &ingest.Manifest{
		Name:       project.Name,
		Entrypoint: project.Entrypoint,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Format:     ingest.FormatV3,
	}

	var buf bytes.Buffer
	if err := ingest.WriteZip(&buf, m, f.layout.SourceRoot(project.OwnerID, project.ID)); err != nil {
		return nil, "", errdefs.Internal(err)
	}

	f.store.AppendAudit(ctx, actor, "project.export", fmt.Sprintf("project:%d", projectID), "")
	return buf.Bytes(), fmt.Sprintf("%s-export.zip", project.Name), nil
}

// ProjectImport creates a project from an export archive
func (f *Facade) ProjectImport(ctx context.Context, actor int64, data []byte) (*ingest.Result, error) {
	if err := f.admit(ctx, actor); err != nil {
		return nil, err
	}
	return f.ingestor.Submit(ctx, ingest.Upload{
		OwnerID:  actor,
		Filename: "import.zip",
		Data:     data,
	})
}
