package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/pinsync/internal/ir"
)

// editableMarker identifies entries sourced from a local/editable checkout.
// These are not reproducible and must never reach a published snapshot.
var editableMarker = regexp.MustCompile(`^(-e|--editable)\s|\s@\s*file:`)

// sourceTag is the same marker carried on a package name, as environments
// that report local checkouts by name do ("mylib (editable)@local").
var sourceTag = regexp.MustCompile(`(?i)\(editable\)|@local\s*$`)

// nameSeparators collapses runs of "-", "_" and "." for PEP 503 normalization.
var nameSeparators = regexp.MustCompile(`[-_.]+`)

// Requirement is one installed package as reported by the environment.
type Requirement struct {
	Name    string // Empty for bare editable lines ("-e git+...")
	Version string // Empty for direct references
	URL     string // Direct reference target of a "name @ <url>" entry
	Raw     string // Original freeze line (or its reconstruction)
}

// Editable reports whether the requirement comes from a local/editable checkout.
func (r Requirement) Editable() bool {
	return editableMarker.MatchString(r.Raw) || sourceTag.MatchString(r.Name)
}

// ParseError reports a freeze line that is neither a pin, a direct
// reference nor an editable entry.
type ParseError struct {
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: unrecognized requirement %q", e.Line, e.Text)
}

// ParseFreeze reads "pip freeze" style output.
// Blank lines and "#" comments are ignored. Editable entries are kept (and
// marked) so that Generate applies the exclusion rule in one place.
func ParseFreeze(r io.Reader) ([]Requirement, error) {
	var reqs []Requirement
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		req, ok := parseLine(line)
		if !ok {
			return nil, &ParseError{Line: lineNum, Text: line}
		}
		reqs = append(reqs, req)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read freeze output: %w", err)
	}

	if reqs == nil {
		reqs = []Requirement{}
	}
	return reqs, nil
}

func parseLine(line string) (Requirement, bool) {
	if editableMarker.MatchString(line) {
		name := ""
		if i := strings.Index(line, " @ "); i > 0 {
			name = strings.TrimSpace(line[:i])
		}
		return Requirement{Name: name, Raw: line}, true
	}

	if name, url, found := strings.Cut(line, " @ "); found {
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if name == "" || url == "" || strings.ContainsAny(url, " ;") {
			return Requirement{}, false
		}
		return Requirement{Name: name, URL: url, Raw: line}, true
	}

	name, version, found := strings.Cut(line, "==")
	if !found {
		return Requirement{}, false
	}
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" || strings.ContainsAny(version, " ;") {
		return Requirement{}, false
	}
	return Requirement{Name: name, Version: version, Raw: line}, true
}

// FromEnvironment builds requirements from a name → version mapping.
// A value may also be a source reference: "-e <path>" or "@ <url>". A name
// may carry the local checkout tag instead ("mylib (editable)@local").
// Map iteration order is irrelevant; Generate sorts.
func FromEnvironment(env map[string]string) []Requirement {
	reqs := make([]Requirement, 0, len(env))
	for name, value := range env {
		value = strings.TrimSpace(value)
		r := Requirement{Name: name}
		switch {
		case strings.HasPrefix(value, "-e ") || strings.HasPrefix(value, "--editable "):
			r.Raw = value
		case strings.HasPrefix(value, "@"):
			url := strings.TrimSpace(strings.TrimPrefix(value, "@"))
			r.Raw = name + " @ " + url
			r.URL = url
		default:
			r.Raw = name + "==" + value
			r.Version = value
		}
		reqs = append(reqs, r)
	}
	return reqs
}

// Generate produces the snapshot for a cell.
// Editable entries are dropped; nothing else is filtered. Direct references
// are kept as "name @ url" lines.
func Generate(cellID string, reqs []Requirement) ir.Snapshot {
	pins := make([]ir.Pin, 0, len(reqs))
	for _, r := range reqs {
		if r.Editable() {
			continue
		}
		pins = append(pins, ir.Pin{
			Name:    norm.NFC.String(r.Name),
			Version: norm.NFC.String(r.Version),
			URL:     r.URL,
		})
	}

	sort.SliceStable(pins, func(i, j int) bool {
		ki, kj := NormalizeName(pins[i].Name), NormalizeName(pins[j].Name)
		if ki != kj {
			return ki < kj
		}
		if pins[i].Name != pins[j].Name {
			return pins[i].Name < pins[j].Name
		}
		if pins[i].Version != pins[j].Version {
			return pins[i].Version < pins[j].Version
		}
		return pins[i].URL < pins[j].URL
	})

	return ir.Snapshot{CellID: cellID, Pins: pins}
}

// NormalizeName returns the PEP 503 normalized form of a package name.
func NormalizeName(name string) string {
	return strings.ToLower(nameSeparators.ReplaceAllString(name, "-"))
}

// IsParseError reports whether err is a freeze parse error.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
