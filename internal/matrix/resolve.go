package matrix

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/pinsync/internal/buildinfo"
	"github.com/roach88/pinsync/internal/ir"
)

// Symbolic version aliases.
const (
	AliasMin = "min"
	AliasMax = "max"
)

// Request is the declarative matrix definition.
type Request struct {
	// Declared lists cell identifiers; "min"/"max" are resolved via build info.
	Declared []string

	// ForceCanary expands to every supported version and disables
	// constraints usage for all cells.
	ForceCanary bool
}

// Resolve produces the concrete cells to execute.
//
// Duplicates collapse to the first occurrence, so declaring "min" next to
// the version it resolves to yields one cell.
func Resolve(ctx context.Context, req Request, provider buildinfo.Provider) ([]ir.MatrixCell, error) {
	needsBuildInfo := req.ForceCanary
	for _, d := range req.Declared {
		if isAlias(d) {
			needsBuildInfo = true
		}
	}

	var supported []string
	if needsBuildInfo {
		if provider == nil {
			return nil, fmt.Errorf("resolve matrix: build info provider required")
		}
		var err error
		supported, err = provider.SupportedVersions(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve matrix: %w", err)
		}
	}

	if req.ForceCanary {
		cells := make([]ir.MatrixCell, 0, len(supported))
		for _, v := range supported {
			cells = append(cells, ir.MatrixCell{
				ID:             v,
				Version:        v,
				Canary:         true,
				UseConstraints: false,
			})
		}
		return cells, nil
	}

	seen := make(map[string]bool)
	var cells []ir.MatrixCell
	for _, d := range req.Declared {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}

		cell := ir.MatrixCell{ID: d, Version: d, UseConstraints: true}
		if isAlias(d) {
			version, err := resolveAlias(d, supported)
			if err != nil {
				return nil, fmt.Errorf("resolve matrix: %w", err)
			}
			cell.ID, cell.Version, cell.Alias = version, version, strings.ToLower(d)
		}

		if seen[cell.ID] {
			continue
		}
		seen[cell.ID] = true
		cells = append(cells, cell)
	}

	if len(cells) == 0 {
		return nil, fmt.Errorf("resolve matrix: no cells declared")
	}
	return cells, nil
}

func isAlias(id string) bool {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case AliasMin, AliasMax:
		return true
	}
	return false
}

func resolveAlias(alias string, supported []string) (string, error) {
	var v string
	switch strings.ToLower(alias) {
	case AliasMin:
		v = buildinfo.Min(supported)
	case AliasMax:
		v = buildinfo.Max(supported)
	}
	if v == "" {
		return "", fmt.Errorf("alias %q: no supported versions", alias)
	}
	return v, nil
}
