package procfs

import "strings"

// extractProcessState parses a /proc/<pid>/stat line and returns the
// process-state character. The command name (2nd field) is wrapped in
// parens and may itself contain parens or spaces, so the state is located
// by finding the *last* ") " in the line rather than splitting on spaces
// (spec §4.3 step 1, original_source ExtractProcessState).
func extractProcessState(line string) (byte, bool) {
	idx := strings.LastIndex(line, ") ")
	if idx == -1 {
		return 0, false
	}
	rest := line[idx+2:]
	if rest == "" {
		return 0, false
	}
	return rest[0], true
}

const zombieState = 'Z'

func isZombie(state byte) bool { return state == zombieState }
