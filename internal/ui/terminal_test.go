package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{
			name: "NO_COLOR disables color",
			env:  map[string]string{"NO_COLOR": "1"},
			want: false,
		},
		{
			name: "CLICOLOR=0 disables color",
			env:  map[string]string{"CLICOLOR": "0"},
			want: false,
		},
		{
			name: "CLICOLOR_FORCE enables color in non-TTY",
			env:  map[string]string{"CLICOLOR_FORCE": "1"},
			want: true,
		},
		{
			name: "NO_COLOR beats CLICOLOR_FORCE",
			env:  map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"},
			want: false,
		},
		{
			// Test processes have no TTY on stdout.
			name: "no overrides in non-TTY",
			env:  map[string]string{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"NO_COLOR", "CLICOLOR", "CLICOLOR_FORCE"} {
				t.Setenv(key, "")
				os.Unsetenv(key)
				if value, ok := tt.env[key]; ok {
					t.Setenv(key, value)
				}
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}
