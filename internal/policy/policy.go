// Package policy implements the pre-launch path restriction check for
// sandboxed and containerized commands.
//
// The check is purely static: the command string is scanned for path-like
// tokens before the process is launched, and any token resolving outside the
// allowed roots is rejected. Paths constructed at runtime (shell variable
// expansion, command substitution) are invisible to this scan; that gap is a
// known limitation of pre-launch validation, not something this package
// attempts to close.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/CynnixSinn/Cynetics-CLI/internal/model"
)

// ErrViolation is returned when a command references a path outside the
// allowed roots.
var ErrViolation = errors.New("path policy violation")

// separatorPattern splits a command line on whitespace and shell control
// operators so that paths in compound commands are still seen.
var separatorPattern = regexp.MustCompile(`[\s;|&<>()]+`)

// Validate checks every path-like token in command against the allowed roots.
// Local execution is explicitly trusted and always passes. For sandbox and
// container kinds, absolute and home-relative tokens must fall under one of
// the roots, and relative tokens must not traverse above the execution root.
func Validate(command, kind string, roots []string) error {
	if kind == model.EnvLocal {
		return nil
	}

	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(root))
	}

	var violations []string
	for _, token := range tokenize(command) {
		candidate, ok := pathCandidate(token)
		if !ok {
			continue
		}
		if candidate.escapes {
			violations = append(violations, fmt.Sprintf("%q escapes the execution root", token))
			continue
		}
		if candidate.resolved != "" && !underAny(candidate.resolved, cleaned) {
			violations = append(violations, fmt.Sprintf("%q is outside the allowed roots", token))
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrViolation, strings.Join(violations, "; "))
	}
	return nil
}

// candidate describes one path-like token. resolved is the normalized
// absolute path ("" for relative tokens); escapes marks a relative token
// that traverses above the execution root.
type candidate struct {
	resolved string
	escapes  bool
}

// tokenize splits a command line into tokens, stripping quotes and taking
// the value side of KEY=value assignments and --flag=value options.
func tokenize(command string) []string {
	var tokens []string
	for _, raw := range separatorPattern.Split(command, -1) {
		raw = strings.Trim(raw, `"'`)
		if raw == "" {
			continue
		}
		tokens = append(tokens, raw)
		if i := strings.IndexByte(raw, '='); i >= 0 && i < len(raw)-1 {
			tokens = append(tokens, strings.Trim(raw[i+1:], `"'`))
		}
	}
	return tokens
}

// pathCandidate classifies a token. Bare words and flags are not paths;
// absolute and ~ tokens resolve to absolute paths; relative tokens are only
// interesting when Clean shows upward traversal.
func pathCandidate(token string) (candidate, bool) {
	switch {
	case filepath.IsAbs(token):
		return candidate{resolved: filepath.Clean(token)}, true
	case token == "~" || strings.HasPrefix(token, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			// No home to resolve against; treat as outside every root.
			return candidate{escapes: true}, true
		}
		return candidate{resolved: filepath.Join(home, strings.TrimPrefix(token, "~"))}, true
	case strings.HasPrefix(token, "-"):
		return candidate{}, false
	default:
		clean := filepath.Clean(token)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return candidate{escapes: true}, true
		}
		return candidate{}, false
	}
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		// The filesystem root contains every absolute path; the prefix
		// check below would double the separator and never match.
		if root == string(filepath.Separator) {
			return true
		}
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
