package sandbox

import (
	"regexp"
	"strings"

	"github.com/shuvohassan00110/Free-Telegram-bot-hosting/pkg/errdefs"
)

// maxSpecLen bounds a single package specification
const maxSpecLen = 90

// specPattern is the conservative grammar for a package specification:
// NAME ( '[' EXTRAS ']' )? ( OP VERSION )?
var specPattern = regexp.MustCompile(
	`^[A-Za-z0-9][A-Za-z0-9._-]*` + // NAME
		`(\[[A-Za-z0-9._,-]+\])?` + // optional [EXTRAS]
		`((<=|>=|==|!=|~=|<|>)[A-Za-z0-9._*]+)?$`) // optional OP VERSION

// ValidatePackageSpec rejects anything outside the conservative package
// specification grammar
func ValidatePackageSpec(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return errdefs.New(errdefs.KindInvalid, "empty package specification")
	}
	if len(spec) > maxSpecLen {
		return errdefs.New(errdefs.KindInvalid, "package specification too long (max %d)", maxSpecLen)
	}
	if !specPattern.MatchString(spec) {
		return errdefs.New(errdefs.KindInvalid, "invalid package specification %q", spec)
	}
	return nil
}

// VetRequirements validates a requirements manifest and returns the
// installable lines. One bad line rejects the whole file: installer flags,
// URLs and VCS references never reach pip.
func VetRequirements(content string) ([]string, error) {
	var vetted []string
	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "-"):
			return nil, errdefs.New(errdefs.KindInvalid,
				"requirements line %d: installer flags are not allowed", i+1)
		case strings.Contains(line, "://"):
			return nil, errdefs.New(errdefs.KindInvalid,
				"requirements line %d: URLs are not allowed", i+1)
		case strings.HasPrefix(line, "git+"):
			return nil, errdefs.New(errdefs.KindInvalid,
				"requirements line %d: VCS references are not allowed", i+1)
		}
		if err := ValidatePackageSpec(line); err != nil {
			return nil, errdefs.New(errdefs.KindInvalid,
				"requirements line %d: invalid specification %q", i+1, line)
		}
		vetted = append(vetted, line)
	}
	return vetted, nil
}
