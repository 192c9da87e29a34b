//go:build !windows

package cmd

import (
	"bytes"
	"testing"
)

func TestSplitDetach(t *testing.T) {
	tests := []struct {
		name    string
		chunk   []byte
		payload []byte
		detach  bool
	}{
		{"no detach key", []byte("ls -la\n"), []byte("ls -la\n"), false},
		{"detach alone", []byte{0x1d}, []byte{}, true},
		{"keystrokes before detach are kept", []byte("exit\n\x1d"), []byte("exit\n"), true},
		{"bytes after detach are dropped", []byte("a\x1dzzz"), []byte("a"), true},
		{"empty chunk", []byte{}, []byte{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, detach := splitDetach(tt.chunk)
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
			if detach != tt.detach {
				t.Errorf("detach = %v, want %v", detach, tt.detach)
			}
		})
	}
}
