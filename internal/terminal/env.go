package terminal

import "strings"

// Environment variables stripped before spawning a shell. A login shell
// re-initializes its version manager (nvm, rbenv, asdf) from its profile;
// inheriting the host application's resolved values shadows the per-project
// tool versions the user expects inside the terminal.
var strippedEnvVars = []string{
	"NVM_DIR",
	"NVM_BIN",
	"NVM_INC",
	"NVM_CD_FLAGS",
	"NPM_CONFIG_PREFIX",
	"NODE_OPTIONS",
	"PREFIX",
	"RBENV_VERSION",
	"ASDF_DIR",
}

// scrubEnv returns env without the variables known to conflict with
// version manager tooling in a fresh login shell.
func scrubEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if isStrippedEnvVar(kv) {
			continue
		}
		out = append(out, kv)
	}
	return out
}

func isStrippedEnvVar(kv string) bool {
	eq := strings.IndexByte(kv, '=')
	if eq < 0 {
		return false
	}
	name := kv[:eq]
	for _, stripped := range strippedEnvVars {
		if name == stripped {
			return true
		}
	}
	return false
}
