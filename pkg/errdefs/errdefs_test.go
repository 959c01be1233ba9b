package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "classified error",
			err:  New(KindQuotaExceeded, "disk quota exceeded"),
			want: KindQuotaExceeded,
		},
		{
			name: "wrapped classified error",
			err:  fmt.Errorf("outer: %w", New(KindBanned, "user is banned")),
			want: KindBanned,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: KindInternal,
		},
		{
			name: "internal wraps cause",
			err:  Internal(errors.New("disk on fire")),
			want: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("/var/lib/hosting/secret/path")
	err := Internal(cause)

	assert.NotContains(t, err.Error(), "/var/lib")
	assert.True(t, errors.Is(err, cause))
}

func TestSyntaxErrorDetail(t *testing.T) {
	err := NewSyntax("bot.py", 3, "invalid syntax")

	assert.Equal(t, KindSyntaxError, KindOf(err))

	se, ok := AsSyntax(err)
	assert.True(t, ok)
	assert.Equal(t, "bot.py", se.Path)
	assert.Equal(t, 3, se.Line)
	assert.Equal(t, "invalid syntax", se.Message)
}

func TestAsSyntaxOnOtherKinds(t *testing.T) {
	_, ok := AsSyntax(New(KindInvalid, "bad env key"))
	assert.False(t, ok)
}
