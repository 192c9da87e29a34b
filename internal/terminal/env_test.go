package terminal

import (
	"testing"
)

func TestScrubEnv_StripsVersionManagerVars(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"NVM_DIR=/home/u/.nvm",
		"HOME=/home/u",
		"NVM_BIN=/home/u/.nvm/versions/node/v20/bin",
		"NODE_OPTIONS=--max-old-space-size=4096",
		"RBENV_VERSION=3.2.0",
		"TERM=xterm-256color",
	}

	got := scrubEnv(env)

	want := []string{
		"PATH=/usr/bin",
		"HOME=/home/u",
		"TERM=xterm-256color",
	}
	if len(got) != len(want) {
		t.Fatalf("scrubEnv returned %d vars, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scrubEnv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScrubEnv_KeepsPrefixedNames(t *testing.T) {
	// Only exact variable names are stripped, not names sharing a prefix.
	env := []string{
		"NVM_DIR_BACKUP=/tmp",
		"PREFIXED_VALUE=1",
		"MY_PREFIX=/opt",
	}

	got := scrubEnv(env)
	if len(got) != 3 {
		t.Errorf("scrubEnv stripped unrelated vars: %v", got)
	}
}

func TestScrubEnv_IgnoresMalformedEntries(t *testing.T) {
	env := []string{"NOEQUALSSIGN", "A=1"}

	got := scrubEnv(env)
	if len(got) != 2 {
		t.Errorf("scrubEnv = %v, want both entries kept", got)
	}
}
