package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSince(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty_is_unset", input: "", want: 0},
		{name: "seconds", input: "10s", want: 10 * time.Second},
		{name: "minutes", input: "5m", want: 5 * time.Minute},
		{name: "days", input: "2d", want: 48 * time.Hour},
		{name: "fractional_days", input: "1.5d", want: 36 * time.Hour},
		{name: "invalid", input: "not-a-duration", wantErr: true},
		{name: "invalid_days", input: "xd", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSince(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
