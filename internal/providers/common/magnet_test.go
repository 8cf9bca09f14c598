package common

import (
	"strings"
	"testing"
)

func TestNormalizeInfoHash(t *testing.T) {
	hash := strings.Repeat("ab", 20)
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already canonical", input: hash, want: hash},
		{name: "uppercase", input: strings.ToUpper(hash), want: hash},
		{name: "padded", input: "  " + hash + "\n", want: hash},
		{name: "urn prefix", input: "urn:btih:" + hash, want: hash},
		{name: "full magnet", input: "magnet:?xt=urn:btih:" + hash, want: hash},
		{name: "empty", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeInfoHash(tt.input); got != tt.want {
				t.Errorf("NormalizeInfoHash(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildMagnet(t *testing.T) {
	hash := strings.Repeat("cd", 20)

	if got, want := BuildMagnet(strings.ToUpper(hash)), "magnet:?xt=urn:btih:"+hash; got != want {
		t.Errorf("BuildMagnet = %q, want %q", got, want)
	}
	if got := BuildMagnet("  "); got != "" {
		t.Errorf("BuildMagnet on blank input = %q, want empty", got)
	}
}
