package types

import (
	"time"
)

// User represents a hosting service user, created on first contact
type User struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	Premium   bool      `json:"premium"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Ban denies all operations for a user while present
type Ban struct {
	UserID   int64     `json:"user_id"`
	Reason   string    `json:"reason"`
	BannedBy int64     `json:"banned_by"`
	BannedAt time.Time `json:"banned_at"`
}

// UserState tracks admission-gate progress for a user
type UserState struct {
	UserID      int64     `json:"user_id"`
	TOSAccepted bool      `json:"tos_accepted"`
	Verified    bool      `json:"verified"`
	VerifiedAt  time.Time `json:"verified_at"`
}

// Project is a user's uploaded program together with its metadata
type Project struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"owner_id"`
	Name       string    `json:"name"`
	Entrypoint string    `json:"entrypoint"` // relative to the project source root
	Autostart  bool      `json:"autostart"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EnvVar is a single environment variable; Value is an encrypted blob at rest
type EnvVar struct {
	ProjectID int64  `json:"project_id"`
	Key       string `json:"key"`
	Value     []byte `json:"value"`
}

// Run records one execution of a project's child process
type Run struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	PID       int        `json:"pid"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"` // nil while the run is open
	ExitCode  int        `json:"exit_code"`
	Reason    RunReason  `json:"reason"`
}

// RunReason classifies why a run ended
type RunReason string

const (
	RunReasonExit     RunReason = "exit"
	RunReasonStop     RunReason = "stop"
	RunReasonRestart  RunReason = "restart"
	RunReasonWatchdog RunReason = "watchdog"
	RunReasonBan      RunReason = "ban"
	RunReasonAdmin    RunReason = "admin-stop"
	RunReasonShutdown RunReason = "shutdown"
)

// DailyUsage tracks per-user quota consumption for one UTC calendar day.
// Counters reset implicitly by the day key; no rollover job exists.
type DailyUsage struct {
	UserID   int64  `json:"user_id"`
	Day      string `json:"day"` // UTC date, YYYY-MM-DD
	Uploads  int    `json:"uploads"`
	Installs int    `json:"installs"`
}

// AuditRecord is one append-only audit trail entry
type AuditRecord struct {
	ID      int64     `json:"id"`
	TS      time.Time `json:"ts"`
	Actor   int64     `json:"actor"`
	Action  string    `json:"action"`
	Target  string    `json:"target"`
	Details string    `json:"details"`
}

// PlanName identifies a pricing plan
type PlanName string

const (
	PlanFree    PlanName = "free"
	PlanPremium PlanName = "premium"
)

// PlanLimits holds the resource quotas of a plan
type PlanLimits struct {
	ConcurrentRuns int   `yaml:"concurrent_runs"`
	Projects       int   `yaml:"projects"`
	DiskBytes      int64 `yaml:"disk_bytes"`
	RAMBytes       int64 `yaml:"ram_bytes"`
	DailyUploads   int   `yaml:"daily_uploads"`
	DailyInstalls  int   `yaml:"daily_installs"`
}

// WizardState is the finite set of multi-step conversation states the front
// end may park a user in between commands. The core only stores and echoes
// these; the transitions live in the front end.
type WizardState string

const (
	WizardNone            WizardState = ""
	WizardNewName         WizardState = "new-name"
	WizardNewWaitFile     WizardState = "new-wait-file"
	WizardNewPickEntry    WizardState = "new-pick-entry"
	WizardUpdateWaitFile  WizardState = "update-wait-file"
	WizardImportWaitFile  WizardState = "import-wait-file"
	WizardImportPickEntry WizardState = "import-pick-entry"
	WizardEnvSet          WizardState = "env-set"
	WizardEnvDelete       WizardState = "env-delete"
	WizardInstall         WizardState = "install"
	WizardRename          WizardState = "rename"
	WizardAdminPremium    WizardState = "admin-premium"
	WizardAdminBan        WizardState = "admin-ban"
	WizardAdminBroadcast  WizardState = "admin-broadcast"
	WizardAdminStopID     WizardState = "admin-stop-id"
)
