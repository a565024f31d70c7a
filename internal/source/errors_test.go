package source

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/emersion/go-webdav"
)

func TestKindFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindTransient},
		{name: "plain error", err: errors.New("connection reset"), want: KindTransient},
		{name: "wrapped auth", err: fmt.Errorf("mailbox: %w", AsAuthError(errors.New("bad password"))), want: KindAuth},
		{name: "webdav 401", err: webdav.NewHTTPError(http.StatusUnauthorized, errors.New("unauthorized")), want: KindAuth},
		{name: "webdav 503", err: webdav.NewHTTPError(http.StatusServiceUnavailable, errors.New("maintenance")), want: KindTransient},
		{name: "status line 401", err: errors.New("HTTP 401 Unauthorized"), want: KindAuth},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindFor(tt.err); got != tt.want {
				t.Fatalf("KindFor(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
