//go:build !windows

package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	attachAddr    string
	attachProject string
	attachCwd     string
)

// attachCmd connects the current terminal to a live session, mainly for
// debugging the daemon without the desktop app.
var attachCmd = &cobra.Command{
	Use:   "attach <session-id>",
	Short: "Attach this terminal to a running session",
	Long: `Attach the current terminal to a session managed by the daemon.

The terminal is switched to raw mode and all keystrokes are forwarded to
the session's shell. Detach with Ctrl-] without killing the shell.

Example:
  deckterm attach myproj-term-1a2b3c4d
  deckterm attach myproj-term-1a2b3c4d --project myproj   # spawn if dead`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachAddr, "addr", "127.0.0.1:8977", "daemon address")
	attachCmd.Flags().StringVar(&attachProject, "project", "", "project id; if set, the session is spawned when not running")
	attachCmd.Flags().StringVar(&attachCwd, "cwd", "", "working directory for a freshly spawned session")
	rootCmd.AddCommand(attachCmd)
}

// splitDetach splits a chunk of keystrokes at the detach key (Ctrl-]).
// Keystrokes before the detach key are still forwarded to the session;
// anything after it is dropped.
func splitDetach(chunk []byte) (payload []byte, detach bool) {
	if i := bytes.IndexByte(chunk, 0x1d); i >= 0 {
		return chunk[:i], true
	}
	return chunk, false
}

type wireFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	DataB64   string `json:"data_b64,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	ExitCode  *int   `json:"exit_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

func runAttach(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	url := fmt.Sprintf("ws://%s/ws", attachAddr)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", attachAddr, err)
	}
	defer conn.Close()

	if attachProject != "" {
		spawn := wireFrame{Type: "spawn", SessionID: sessionID, ProjectID: attachProject, Cwd: attachCwd}
		if err := conn.WriteJSON(spawn); err != nil {
			return err
		}
	}

	if err := conn.WriteJSON(wireFrame{Type: "attach", SessionID: sessionID}); err != nil {
		return err
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	sendResize := func() {
		cols, rows, err := term.GetSize(fd)
		if err != nil {
			return
		}
		_ = conn.WriteJSON(wireFrame{Type: "resize", SessionID: sessionID, Cols: cols, Rows: rows})
	}
	sendResize()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	go func() {
		for range winch {
			sendResize()
		}
	}()
	defer signal.Stop(winch)

	done := make(chan error, 1)

	// Keystrokes -> daemon. Ctrl-] detaches.
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				done <- err
				return
			}
			payload, detach := splitDetach(buf[:n])
			if len(payload) > 0 {
				frame := wireFrame{
					Type:      "input",
					SessionID: sessionID,
					DataB64:   base64.StdEncoding.EncodeToString(payload),
				}
				if err := conn.WriteJSON(frame); err != nil {
					done <- err
					return
				}
			}
			if detach {
				done <- nil
				return
			}
		}
	}()

	// Daemon -> stdout.
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var frame wireFrame
			if err := json.Unmarshal(message, &frame); err != nil {
				continue
			}
			switch frame.Type {
			case "buffered", "output":
				data, err := base64.StdEncoding.DecodeString(frame.DataB64)
				if err == nil {
					_, _ = os.Stdout.Write(data)
				}
			case "exit":
				code := -1
				if frame.ExitCode != nil {
					code = *frame.ExitCode
				}
				if code == 0 {
					done <- nil
				} else {
					done <- fmt.Errorf("session exited with code %d", code)
				}
				return
			case "error":
				done <- fmt.Errorf("daemon error: %s", frame.Message)
				return
			}
		}
	}()

	err = <-done
	_ = conn.WriteJSON(wireFrame{Type: "detach", SessionID: sessionID})
	return err
}
