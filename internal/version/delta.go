package version

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/locaidev/locai/internal/errs"
)

// Hunk is one contiguous diff operation. Applying a version's hunks in order
// to the predecessor content reproduces this version's content exactly.
type Hunk struct {
	Op       string   `json:"op"` // equal, replace, delete, insert
	OldStart int      `json:"old_start"`
	OldEnd   int      `json:"old_end"`
	NewLines []string `json:"new_lines,omitempty"`
}

// splitKeepEnds splits into lines preserving line terminators so joins
// reproduce the input byte-for-byte.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// ComputeHunks produces a deterministic line-level diff from old to new.
func ComputeHunks(old, new string) []Hunk {
	a := splitKeepEnds(old)
	b := splitKeepEnds(new)

	matcher := difflib.NewMatcher(a, b)
	var hunks []Hunk
	for _, op := range matcher.GetOpCodes() {
		h := Hunk{OldStart: op.I1, OldEnd: op.I2}
		switch op.Tag {
		case 'e':
			h.Op = "equal"
		case 'r':
			h.Op = "replace"
			h.NewLines = append([]string(nil), b[op.J1:op.J2]...)
		case 'd':
			h.Op = "delete"
		case 'i':
			h.Op = "insert"
			h.NewLines = append([]string(nil), b[op.J1:op.J2]...)
		}
		hunks = append(hunks, h)
	}
	return hunks
}

// ApplyHunks reconstructs the new content from old content plus hunks.
func ApplyHunks(old string, hunks []Hunk) (string, error) {
	a := splitKeepEnds(old)
	var sb strings.Builder
	for _, h := range hunks {
		if h.OldStart < 0 || h.OldEnd < h.OldStart || h.OldEnd > len(a) {
			return "", errs.E(errs.KindIntegrityError, "hunk range [%d,%d) out of bounds for %d lines", h.OldStart, h.OldEnd, len(a))
		}
		switch h.Op {
		case "equal":
			for _, line := range a[h.OldStart:h.OldEnd] {
				sb.WriteString(line)
			}
		case "replace", "insert":
			for _, line := range h.NewLines {
				sb.WriteString(line)
			}
		case "delete":
			// skipped
		default:
			return "", errs.E(errs.KindIntegrityError, "unknown hunk op %q", h.Op)
		}
	}
	return sb.String(), nil
}
