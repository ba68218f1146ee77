package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		name string
		args []string
	}{
		{"darwin", "open", []string{"/tmp/a.png"}},
		{"linux", "xdg-open", []string{"/tmp/a.png"}},
		{"freebsd", "xdg-open", []string{"/tmp/a.png"}},
		{"windows", "cmd", []string{"/C", "start", "", "/tmp/a.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			name, args := openCommand(tt.goos, "/tmp/a.png")
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestOpen_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Open(ctx, "/tmp/a.png", nil)
	assert.Error(t, err)
}
