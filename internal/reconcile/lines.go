package reconcile

import "strings"

// SignificantLines returns the lines of a snapshot that take part in change
// detection: every line except those whose first non-space character is '#'.
// A trailing newline does not produce an empty final line.
func SignificantLines(data []byte) []string {
	text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return []string{}
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
			continue
		}
		lines = append(lines, line)
	}
	if lines == nil {
		return []string{}
	}
	return lines
}

// SignificantlyEqual reports whether two snapshots differ only in comments.
func SignificantlyEqual(a, b []byte) bool {
	la, lb := SignificantLines(a), SignificantLines(b)
	if len(la) != len(lb) {
		return false
	}
	for i := range la {
		if la[i] != lb[i] {
			return false
		}
	}
	return true
}
