package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/layout"
)

const (
	// ManifestName is the metadata file carried by export archives
	ManifestName = "hostingbot.json"

	FormatV1 = "hostingbot-v1"
	FormatV3 = "hostingbot-v3"
)

// Manifest is the metadata file of an export archive
type Manifest struct {
	Name       string `json:"name"`
	Entrypoint string `json:"entrypoint"`
	ExportedAt string `json:"exported_at,omitempty"`
	Format     string `json:"format,omitempty"`
}

// ValidateEntryName rejects archive entry names that are absolute or carry a
// parent-escaping component. Checked before anything touches the disk.
func ValidateEntryName(name string) error {
	if name == "" {
		return errdefs.New(errdefs.KindInvalid, "archive contains an empty entry name")
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") || filepath.IsAbs(name) {
		return errdefs.New(errdefs.KindInvalid, "archive entry %q has an absolute path", name)
	}
	for _, part := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if part == ".." {
			return errdefs.New(errdefs.KindInvalid, "archive entry %q escapes the archive root", name)
		}
	}
	return nil
}

// ExtractZip validates and extracts an in-memory zip archive into dest.
// Every entry is validated before the first byte is written, so a malicious
// archive leaves no partial extraction behind.
func ExtractZip(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errdefs.Wrap(errdefs.KindInvalid, err, "not a valid zip archive")
	}

	for _, f := range r.File {
		if err := ValidateEntryName(f.Name); err != nil {
			return err
		}
	}

	for _, f := range r.File {
		target, err := layout.SafeJoin(dest, filepath.FromSlash(f.Name))
		if err != nil {
			return errdefs.Wrap(errdefs.KindInvalid, err, "archive entry %q escapes the archive root", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create parent for %s: %w", f.Name, err)
		}

		if err := extractOne(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return nil
}

// ReadManifest loads the export manifest from an extracted tree, returning
// nil when the tree carries none
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errdefs.Wrap(errdefs.KindInvalid, err, "malformed %s", ManifestName)
	}
	return &m, nil
}

// sourceRoot decides which extracted subtree is the project source: the
// manifest's src/ subtree when present, otherwise the staging root itself
// minus the manifest file
func sourceRoot(staging string) (string, *Manifest, error) {
	m, err := ReadManifest(staging)
	if err != nil {
		return "", nil, err
	}
	if m != nil {
		srcDir := filepath.Join(staging, "src")
		if info, err := os.Stat(srcDir); err == nil && info.IsDir() {
			return srcDir, m, nil
		}
		// Without a src/ subtree the metadata file itself is not source
		if err := os.Remove(filepath.Join(staging, ManifestName)); err != nil {
			return "", nil, err
		}
	}
	return staging, m, nil
}

// WriteZip builds a zip archive from a manifest and a source tree, the
// inverse of ExtractZip. Used by project export.
func WriteZip(w io.Writer, m *Manifest, srcDir string) error {
	zw := zip.NewWriter(w)

	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	mf, err := zw.Create(ManifestName)
	if err != nil {
		return err
	}
	if _, err := mf.Write(manifestData); err != nil {
		return err
	}

	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		f, err := zw.Create("src/" + filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(f, in)
		return err
	})
	if err != nil {
		return fmt.Errorf("archive source tree: %w", err)
	}

	return zw.Close()
}
