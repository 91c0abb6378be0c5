// Package buildinfo supplies the externally maintained list of supported
// interpreter versions that the symbolic aliases "min" and "max" resolve
// against.
package buildinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// VersionsField is the CUE path holding the supported versions.
const VersionsField = "python_versions"

// ErrNoVersions is returned when a provider yields an empty version list.
var ErrNoVersions = errors.New("build info lists no supported versions")

// Provider returns the supported interpreter versions.
type Provider interface {
	SupportedVersions(ctx context.Context) ([]string, error)
}

// Static is a fixed version list, typically taken from the config file.
type Static []string

// SupportedVersions returns the list sorted ascending and de-duplicated.
func (s Static) SupportedVersions(ctx context.Context) ([]string, error) {
	return normalize(s)
}

// CUEFile reads the version list from a CUE file exposing
//
//	python_versions: ["3.9", "3.10", ...]
//
// The file is evaluated on every call so edits are picked up between runs.
type CUEFile struct {
	Path string
}

// SupportedVersions evaluates the CUE file and decodes the version list.
func (f CUEFile) SupportedVersions(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read build info: %w", err)
	}
	return ParseCUE(f.Path, data)
}

// ParseCUE evaluates CUE source and decodes the version list.
// filename is only used in error positions.
func ParseCUE(filename string, data []byte) ([]string, error) {
	cctx := cuecontext.New()
	value := cctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build info %s: %w", filename, err)
	}

	field := value.LookupPath(cue.ParsePath(VersionsField))
	if !field.Exists() {
		return nil, fmt.Errorf("build info %s: field %q not found", filename, VersionsField)
	}

	var versions []string
	if err := field.Decode(&versions); err != nil {
		return nil, fmt.Errorf("build info %s: decode %s: %w", filename, VersionsField, err)
	}
	return normalize(versions)
}

// Min returns the lowest supported version.
func Min(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return versions[0]
}

// Max returns the highest supported version.
func Max(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	return versions[len(versions)-1]
}

// normalize trims, de-duplicates and sorts versions numerically.
func normalize(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, ErrNoVersions
	}
	sort.SliceStable(out, func(i, j int) bool {
		return CompareVersions(out[i], out[j]) < 0
	})
	return out, nil
}

// CompareVersions orders dotted versions component by component, numerically
// where both components are numbers ("3.9" < "3.10").
func CompareVersions(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		case pa[i] != pb[i]:
			return strings.Compare(pa[i], pb[i])
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}
