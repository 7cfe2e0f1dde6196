package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantMode string
		wantRest []string
	}{
		{"flag form", []string{"--mode=storefront", "--port=3000"}, ModeStorefront, []string{"--port=3000"}},
		{"subcommand form", []string{"storefront", "--port=3000"}, ModeStorefront, []string{"--port=3000"}},
		{"tracking alias", []string{"track"}, ModeTrack, nil},
		{"notify alias", []string{"--mode=notify"}, ModeNotify, nil},
		{"no mode", []string{"--port=3000"}, "", []string{"--port=3000"}},
		{"empty args", nil, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, rest, err := ParseMode(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, mode)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestParseMode_UnknownSubcommandIsPassthrough(t *testing.T) {
	mode, rest, err := ParseMode([]string{"laundry", "--port=1"})
	require.NoError(t, err)
	assert.Equal(t, "", mode)
	assert.Equal(t, []string{"laundry", "--port=1"}, rest)
}
