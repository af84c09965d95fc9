package slug

import (
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"UPPER lower MiXeD", "upper-lower-mixed"},
		{"  padded   title  ", "padded-title"},
		{"Hello, World! How's it going?", "hello-world-hows-it-going"},
		{"Rock & Roll", "rock-roll"},
		{"Version (2.0)", "version-20"},
		{"Issue #42", "issue-42"},
		{"Go -- the good parts", "go-the-good-parts"},
		{"line\tone\ntwo", "line-one-two"},
		{"a.b*c", "abc"},
		{"Café au lait", "caf-au-lait"},
		{"日本語", ""},
		{"---", ""},
		{"", ""},
		{"already-a-slug", "already-a-slug"},
		{"How to Deploy Go Apps (2026 Edition)", "how-to-deploy-go-apps-2026-edition"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Generate(tt.input); got != tt.want {
				t.Errorf("Generate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	for _, in := range []string{"A Post About Caching", "x", "2026 in review!"} {
		once := Generate(in)
		if twice := Generate(once); twice != once {
			t.Errorf("Generate(Generate(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestWithTimestamp(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	stamp := "1767225600123"

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain slug", input: "hello-world", want: "hello-world-" + stamp},
		{name: "empty slug", input: "", want: stamp},
		{name: "already stamped", input: "hello-world-" + stamp, want: "hello-world-" + stamp},
		{name: "stamped earlier the same day", input: "hello-17672256", want: "hello-17672256"},
		{name: "digits without hyphen", input: "hello17672256", want: "hello17672256-" + stamp},
		{name: "older stamp", input: "hello-1700000000000", want: "hello-1700000000000-" + stamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithTimestamp(tt.input, now); got != tt.want {
				t.Errorf("WithTimestamp(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
