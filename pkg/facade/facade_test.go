package facade

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/events"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/ingest"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/sandbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/secretbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/supervisor"
)

// okChecker accepts every source file so facade tests need no interpreter
type okChecker struct{}

func (okChecker) Check(context.Context, string) error { return nil }

func newTestFacade(t *testing.T) (*Facade, *store.Store) {
	t.Helper()

	box, err := secretbox.NewFromKeyMaterial("test-key")
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "catalog.db"), box)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		AdminIDs:         []int64{999},
		Plans:            config.DefaultPlans(),
		DataRoot:         dir,
		UploadMaxBytes:   50 * 1024 * 1024,
		LogPageSize:      50,
		LogRingSize:      100,
		RestartBaseDelay: 5 * time.Second,
		RestartMaxDelay:  90 * time.Second,
		PythonBin:        "python3",
		VenvTimeout:      time.Minute,
		InstallTimeout:   time.Minute,
	}
	lm := layout.NewManager(dir)
	gate := quota.NewGate(cfg, st, lm)
	sb := sandbox.NewProvisioner(cfg, st, lm, gate)
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sup := supervisor.New(cfg, st, lm, gate, sb, broker)
	ing := ingest.NewIngestor(cfg, st, lm, gate, okChecker{})

	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, 1, "alice"))
	require.NoError(t, st.UpsertUser(ctx, 2, "bob"))
	require.NoError(t, st.SetTOSAccepted(ctx, 1, true))
	require.NoError(t, st.SetVerified(ctx, 1, true))
	require.NoError(t, st.SetTOSAccepted(ctx, 2, true))
	require.NoError(t, st.SetVerified(ctx, 2, true))

	return New(cfg, st, lm, gate, sb, sup, ing, broker), st
}

func createProject(t *testing.T, f *Facade, owner int64) int64 {
	t.Helper()
	res, err := f.ProjectCreate(context.Background(), owner, "mybot", "bot.py",
		[]byte("print('hi')\n"))
	require.NoError(t, err)
	return res.ProjectID
}

func TestValidateEnvKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"TOKEN", false},
		{"_PRIVATE", false},
		{"API_KEY_2", false},
		{"A", false},
		{strings.Repeat("A", 51), false},

		{"", true},
		{"lowercase", true},
		{"1LEADING", true},
		{"WITH-DASH", true},
		{"WITH SPACE", true},
		{strings.Repeat("A", 52), true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := ValidateEnvKey(tt.key)
			if tt.wantErr {
				assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthorizationOwnerOrAdmin(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()

	pid := createProject(t, f, 1)

	// Owner sees it
	_, err := f.ProjectGet(ctx, 1, pid)
	assert.NoError(t, err)

	// A stranger does not
	_, err = f.ProjectGet(ctx, 2, pid)
	assert.Equal(t, errdefs.KindForbidden, errdefs.KindOf(err))

	// An admin does
	_, err = f.ProjectGet(ctx, 999, pid)
	assert.NoError(t, err)
}

func TestGateRequired(t *testing.T) {
	f, st := newTestFacade(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, 3, "carol"))

	_, err := f.ProjectCreate(ctx, 3, "nope", "bot.py", []byte("x = 1\n"))
	assert.Equal(t, errdefs.KindGateRequired, errdefs.KindOf(err))
}

func TestEnvSetListDelete(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)

	require.NoError(t, f.EnvSet(ctx, 1, pid, "TOKEN", "secret"))

	err := f.EnvSet(ctx, 1, pid, "bad-key", "x")
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))

	keys, err := f.EnvList(ctx, 1, pid)
	require.NoError(t, err)
	assert.Equal(t, []string{"TOKEN"}, keys)

	require.NoError(t, f.EnvDelete(ctx, 1, pid, "TOKEN"))
	keys, err = f.EnvList(ctx, 1, pid)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		pageSize int
		page     int
		from, to int
	}{
		{"newest full page", 200, 50, 0, 151, 200},
		{"second page", 200, 50, 1, 101, 150},
		{"oldest partial page", 120, 50, 2, 1, 20},
		{"past the beginning", 120, 50, 3, 0, 0},
		{"empty log", 0, 50, 0, 0, 0},
		{"short log page zero", 10, 50, 0, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := pageBounds(tt.total, tt.pageSize, tt.page)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestLogsTail(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)

	// Write 120 lines into the project log
	view, err := f.ProjectGet(ctx, 1, pid)
	require.NoError(t, err)
	logPath := f.layout.LogFile(view.Project.OwnerID, pid)
	var b strings.Builder
	for i := 1; i <= 120; i++ {
		b.WriteString("line " + strconv.Itoa(i) + "\n")
	}
	require.NoError(t, os.WriteFile(logPath, []byte(b.String()), 0644))

	page0, err := f.LogsTail(ctx, 1, pid, 0)
	require.NoError(t, err)
	assert.Equal(t, 120, page0.Total)
	assert.Equal(t, "lines 71–120 of 120", page0.Summary)
	assert.Len(t, page0.Lines, 50)
	assert.Equal(t, "line 120", page0.Lines[len(page0.Lines)-1])

	page2, err := f.LogsTail(ctx, 1, pid, 2)
	require.NoError(t, err)
	assert.Equal(t, "lines 1–20 of 120", page2.Summary)
	assert.Len(t, page2.Lines, 20)
	assert.Equal(t, "line 1", page2.Lines[0])

	_, err = f.LogsTail(ctx, 1, pid, -1)
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
}

func TestProjectDeleteRemovesEverything(t *testing.T) {
	f, st := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)
	require.NoError(t, f.EnvSet(ctx, 1, pid, "TOKEN", "x"))

	require.NoError(t, f.ProjectDelete(ctx, 1, pid))

	_, err := st.GetProject(ctx, pid)
	assert.Equal(t, errdefs.KindNotFound, errdefs.KindOf(err))
	assert.NoDirExists(t, f.layout.ProjectRoot(1, pid))
}

func TestAdminOpsRequireAdmin(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()

	assert.Equal(t, errdefs.KindForbidden, errdefs.KindOf(f.AdminSetPremium(ctx, 1, 2, true)))
	assert.Equal(t, errdefs.KindForbidden, errdefs.KindOf(f.AdminBan(ctx, 1, 2, "nope")))
	assert.Equal(t, errdefs.KindForbidden, errdefs.KindOf(f.AdminUnban(ctx, 1, 2)))
	_, err := f.AdminSystemStats(ctx, 1)
	assert.Equal(t, errdefs.KindForbidden, errdefs.KindOf(err))
}

func TestAdminBanCascade(t *testing.T) {
	f, st := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)

	require.NoError(t, f.AdminBan(ctx, 999, 1, "abuse"))

	banned, err := st.IsBanned(ctx, 1)
	require.NoError(t, err)
	assert.True(t, banned)

	// Subsequent start by the banned user is rejected with Banned
	err = f.Start(ctx, 1, pid)
	assert.Equal(t, errdefs.KindBanned, errdefs.KindOf(err))

	require.NoError(t, f.AdminUnban(ctx, 999, 1))
	banned, err = st.IsBanned(ctx, 1)
	require.NoError(t, err)
	assert.False(t, banned)
}

func TestAdminCannotBanAdmin(t *testing.T) {
	f, _ := newTestFacade(t)
	err := f.AdminBan(context.Background(), 999, 999, "self")
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
}

func TestAdminSystemStats(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	createProject(t, f, 1)

	stats, err := f.AdminSystemStats(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 1, stats.Projects)
	assert.Equal(t, 0, stats.RunningProjects)
	assert.Greater(t, stats.DiskUsedBytes, int64(0))
}

func TestStopNotRunning(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)

	err := f.Stop(ctx, 1, pid)
	assert.Equal(t, errdefs.KindNotRunning, errdefs.KindOf(err))
}

func TestExportProducesImportableArchive(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	pid := createProject(t, f, 1)

	data, filename, err := f.ProjectExport(ctx, 1, pid)
	require.NoError(t, err)
	assert.Contains(t, filename, "mybot")
	assert.NotEmpty(t, data)

	res, err := f.ProjectImport(ctx, 2, data)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "bot.py", res.Entrypoint)

	view, err := f.ProjectGet(ctx, 2, res.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "mybot", view.Project.Name)
}
