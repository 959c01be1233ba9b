package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/config"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/quota"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/secretbox"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/store"
)

// fakeChecker flags files listed in bad; everything else parses clean
type fakeChecker struct {
	bad map[string]struct {
		line int
		msg  string
	}
}

func (c *fakeChecker) Check(_ context.Context, path string) error {
	if c.bad == nil {
		return nil
	}
	if detail, ok := c.bad[filepath.Base(path)]; ok {
		return errdefs.NewSyntax(filepath.Base(path), detail.line, detail.msg)
	}
	return nil
}

type testEnv struct {
	ing    *Ingestor
	store  *store.Store
	layout *layout.Manager
}

func newTestEnv(t *testing.T, checker SyntaxChecker) *testEnv {
	t.Helper()

	box, err := secretbox.NewFromKeyMaterial("test-key")
	require.NoError(t, err)

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "catalog.db"), box)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Plans:          config.DefaultPlans(),
		DataRoot:       dir,
		UploadMaxBytes: 50 * 1024 * 1024,
		PythonBin:      "python3",
	}
	lm := layout.NewManager(dir)
	gate := quota.NewGate(cfg, st, lm)
	if checker == nil {
		checker = &fakeChecker{}
	}

	require.NoError(t, st.UpsertUser(context.Background(), 1, "alice"))
	return &testEnv{ing: NewIngestor(cfg, st, lm, gate, checker), store: st, layout: lm}
}

func zipOf(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestValidateEntryName(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain", "bot.py", false},
		{"nested", "lib/util.py", false},
		{"absolute", "/etc/passwd", true},
		{"backslash absolute", "\\evil.py", true},
		{"parent escape", "../escape.py", true},
		{"nested escape", "lib/../../escape.py", true},
		{"windows escape", "lib\\..\\..\\escape.py", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntryName(tt.entry)
			if tt.wantErr {
				assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtractZipRejectsEscapeBeforeWriting(t *testing.T) {
	dest := t.TempDir()

	// A zip.Writer refuses to create ../ entries, so craft the archive by
	// patching a valid one
	data := zipOf(t, map[string]string{"ok.py": "print('hi')\n", "LATER.py": "x = 1\n"})
	data = bytes.Replace(data, []byte("LATER.py"), []byte("../ev.py"), -1)

	err := ExtractZip(data, dest)
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))

	// Validation happens before extraction: nothing was written
	entries, err2 := os.ReadDir(dest)
	require.NoError(t, err2)
	assert.Empty(t, entries)
}

func TestDetectEntrypoint(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
		ok         bool
	}{
		{"single candidate", []string{"whatever.py"}, "whatever.py", true},
		{"well-known bot", []string{"aaa.py", "bot.py", "zzz.py"}, "bot.py", true},
		{"priority order", []string{"app.py", "main.py"}, "main.py", true},
		{"dunder main", []string{"__main__.py", "helper.py"}, "__main__.py", true},
		{"shallow beats deep", []string{"lib/main.py", "main.py"}, "main.py", true},
		{"ambiguous", []string{"alpha.py", "beta.py"}, "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectEntrypoint(tt.candidates)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Cool Bot!", "My-Cool-Bot"},
		{"  spaced  ", "spaced"},
		{"already-clean_1.0", "already-clean_1.0"},
		{"///", "project"},
		{"", "project"},
	}

	for _, tt := range tests {
		got := SanitizeName(tt.in)
		assert.Equal(t, tt.want, got)
		// Idempotent
		assert.Equal(t, got, SanitizeName(got))
	}
}

func TestSubmitSingleFileHappyPath(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "mybot",
		Filename: "bot.py",
		Data:     []byte("print('hello')\n"),
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "bot.py", res.Entrypoint)

	p, err := env.store.GetProject(ctx, res.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "mybot", p.Name)
	assert.True(t, p.Autostart)

	src := env.layout.SourceRoot(1, res.ProjectID)
	assert.FileExists(t, filepath.Join(src, "bot.py"))

	usage, err := env.store.GetDailyUsage(ctx, 1, store.DayKey(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, usage.Uploads)
}

func TestSubmitSyntaxErrorLeavesNoTrace(t *testing.T) {
	checker := &fakeChecker{bad: map[string]struct {
		line int
		msg  string
	}{"broken.py": {1, "invalid syntax"}}}
	env := newTestEnv(t, checker)
	ctx := context.Background()

	_, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "broken",
		Filename: "broken.py",
		Data:     []byte("def (\n"),
	})
	require.Error(t, err)

	se, ok := errdefs.AsSyntax(err)
	require.True(t, ok)
	assert.Equal(t, "broken.py", se.Path)
	assert.Equal(t, 1, se.Line)

	// No project row, no files, no counter
	projects, err := env.store.ListProjectsByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, projects)
	assert.NoDirExists(t, env.layout.UserRoot(1))

	usage, err := env.store.GetDailyUsage(ctx, 1, store.DayKey(time.Now()))
	require.NoError(t, err)
	assert.Zero(t, usage.Uploads)
}

func TestSubmitEscapingArchiveNotCounted(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	data := zipOf(t, map[string]string{"ok.py": "x = 1\n", "LATER.py": "y = 2\n"})
	data = bytes.Replace(data, []byte("LATER.py"), []byte("../ev.py"), -1)

	_, err := env.ing.Submit(ctx, Upload{OwnerID: 1, Name: "evil", Filename: "evil.zip", Data: data})
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))

	usage, err := env.store.GetDailyUsage(ctx, 1, store.DayKey(time.Now()))
	require.NoError(t, err)
	assert.Zero(t, usage.Uploads)
}

func TestSubmitArchiveWithWellKnownEntrypoint(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "archived",
		Filename: "code.zip",
		Data: zipOf(t, map[string]string{
			"main.py":       "print('main')\n",
			"lib/helper.py": "x = 1\n",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "main.py", res.Entrypoint)
	assert.FileExists(t, filepath.Join(env.layout.SourceRoot(1, res.ProjectID), "lib", "helper.py"))
}

func TestSubmitAmbiguousThenResolve(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "pickme",
		Filename: "code.zip",
		Data: zipOf(t, map[string]string{
			"alpha.py": "a = 1\n",
			"beta.py":  "b = 2\n",
		}),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.PickToken)
	assert.Equal(t, []string{"alpha.py", "beta.py"}, res.Candidates)
	assert.Zero(t, res.ProjectID)
	assert.Equal(t, 1, env.ing.PendingCount())

	// Bad choice is rejected, pick consumed
	_, err = env.ing.Resolve(ctx, res.PickToken, "gamma.py")
	assert.Equal(t, errdefs.KindInvalid, errdefs.KindOf(err))

	// Re-submit and resolve properly
	res, err = env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "pickme",
		Filename: "code.zip",
		Data: zipOf(t, map[string]string{
			"alpha.py": "a = 1\n",
			"beta.py":  "b = 2\n",
		}),
	})
	require.NoError(t, err)

	final, err := env.ing.Resolve(ctx, res.PickToken, "beta.py")
	require.NoError(t, err)
	assert.True(t, final.Created)
	assert.Equal(t, "beta.py", final.Entrypoint)
	assert.Equal(t, 0, env.ing.PendingCount())
}

func TestSubmitManifestArchive(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Filename: "export.zip",
		Data: zipOf(t, map[string]string{
			ManifestName:    `{"name":"exported-bot","entrypoint":"runner.py","format":"hostingbot-v3"}`,
			"src/runner.py": "print('run')\n",
			"src/extra.py":  "x = 1\n",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "runner.py", res.Entrypoint)

	p, err := env.store.GetProject(ctx, res.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "exported-bot", p.Name)

	// Only the src/ subtree became the source; the manifest did not
	src := env.layout.SourceRoot(1, res.ProjectID)
	assert.FileExists(t, filepath.Join(src, "runner.py"))
	assert.NoFileExists(t, filepath.Join(src, ManifestName))
}

func TestSubmitUpdateReplacesSource(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID: 1, Name: "mybot", Filename: "bot.py", Data: []byte("print(1)\n"),
	})
	require.NoError(t, err)

	res2, err := env.ing.Submit(ctx, Upload{
		OwnerID:   1,
		ProjectID: res.ProjectID,
		Filename:  "code.zip",
		Data:      zipOf(t, map[string]string{"main.py": "print(2)\n"}),
	})
	require.NoError(t, err)
	assert.False(t, res2.Created)
	assert.Equal(t, res.ProjectID, res2.ProjectID)
	assert.Equal(t, "main.py", res2.Entrypoint)

	src := env.layout.SourceRoot(1, res.ProjectID)
	assert.NoFileExists(t, filepath.Join(src, "bot.py"))
	assert.FileExists(t, filepath.Join(src, "main.py"))

	p, err := env.store.GetProject(ctx, res.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "main.py", p.Entrypoint)
}

func TestSubmitProjectSlotQuota(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	limit := config.DefaultPlans()["free"].Projects
	for n := 0; n < limit; n++ {
		_, err := env.ing.Submit(ctx, Upload{
			OwnerID: 1, Name: "p", Filename: "bot.py", Data: []byte("x = 1\n"),
		})
		require.NoError(t, err)
	}

	_, err := env.ing.Submit(ctx, Upload{
		OwnerID: 1, Name: "over", Filename: "bot.py", Data: []byte("x = 1\n"),
	})
	assert.Equal(t, errdefs.KindQuotaExceeded, errdefs.KindOf(err))
}

func TestSubmitBannedUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.store.Ban(ctx, 99, 1, "abuse"))

	_, err := env.ing.Submit(ctx, Upload{
		OwnerID: 1, Name: "p", Filename: "bot.py", Data: []byte("x = 1\n"),
	})
	assert.Equal(t, errdefs.KindBanned, errdefs.KindOf(err))
}

func TestSweepStaleStagings(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "parked",
		Filename: "code.zip",
		Data:     zipOf(t, map[string]string{"a.py": "a = 1\n", "b.py": "b = 2\n"}),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.PickToken)

	// Fresh picks survive a sweep
	assert.Zero(t, env.ing.SweepStaleStagings(time.Hour))
	assert.Equal(t, 1, env.ing.PendingCount())

	// Aged picks are reaped
	removed := env.ing.SweepStaleStagings(0)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, env.ing.PendingCount())

	_, err = env.ing.Resolve(ctx, res.PickToken, "a.py")
	assert.Equal(t, errdefs.KindNotFound, errdefs.KindOf(err))
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	res, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Name:     "roundtrip",
		Filename: "code.zip",
		Data: zipOf(t, map[string]string{
			"main.py":    "print('v1')\n",
			"lib/dep.py": "d = 1\n",
		}),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	m := &Manifest{Name: "roundtrip", Entrypoint: "main.py", Format: FormatV3}
	require.NoError(t, WriteZip(&buf, m, env.layout.SourceRoot(1, res.ProjectID)))

	imported, err := env.ing.Submit(ctx, Upload{
		OwnerID:  1,
		Filename: "import.zip",
		Data:     buf.Bytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, "main.py", imported.Entrypoint)

	p, err := env.store.GetProject(ctx, imported.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", p.Name)

	got, err := os.ReadFile(filepath.Join(env.layout.SourceRoot(1, imported.ProjectID), "lib", "dep.py"))
	require.NoError(t, err)
	assert.Equal(t, "d = 1\n", string(got))
}
