// Package personality resolves which candidate persona answers a voter
// submission, and loads that persona's context text.
package personality

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Candidate is one selectable persona.
type Candidate struct {
	Key         string
	DisplayName string
	ContextFile string
}

// DefaultKey selects the persona used when the request names none.
const DefaultKey = "saw"

var candidates = map[string]Candidate{
	"saw": {Key: "saw", DisplayName: "Kshama Sawant", ContextFile: "sawant.txt"},
	"cha": {Key: "cha", DisplayName: "Chaudhry", ContextFile: "chaudhry.txt"},
	"tur": {Key: "tur", DisplayName: "Jack Turner (Fictional)", ContextFile: "turner.txt"},
}

// Normalize lowercases and trims a request parameter.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// Get resolves a candidate key, falling back to the default for unknown or
// empty keys. Unknown keys are not an error; the voter still gets an answer.
func Get(key string) Candidate {
	if c, ok := candidates[Normalize(key)]; ok {
		return c
	}
	return candidates[DefaultKey]
}

// Registry lists candidate context files under a base directory.
type Registry struct {
	contextDir string
}

func NewRegistry(contextDir string) *Registry {
	return &Registry{contextDir: contextDir}
}

// LoadContext returns the candidate's context text from
// <contextDir>/<file>. A missing or unreadable file degrades to a small
// fallback string; submissions never fail because a context file is absent.
func (r *Registry) LoadContext(candidate Candidate) string {
	raw, err := os.ReadFile(filepath.Join(r.contextDir, candidate.ContextFile))
	if err != nil {
		return fmt.Sprintf(
			"It is January 2026. You are responding on behalf of %s. Provide a thoughtful, respectful response.",
			candidate.DisplayName,
		)
	}
	return strings.TrimSpace(string(raw))
}

// validModes are the non-production display modes.
var validModes = map[string]bool{"dev": true, "tst": true}

// Mode returns the normalized display mode, or "" for production.
func Mode(value string) string {
	m := Normalize(value)
	if validModes[m] {
		return m
	}
	return ""
}

// ShouldShowDebug reports whether the request runs in a debug display mode.
func ShouldShowDebug(value string) bool {
	return Mode(value) != ""
}
