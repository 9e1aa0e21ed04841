// Package archive reconstructs a logical zip archive from split parts on disk
// and enumerates the media entries it contains.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Static errors for part resolution.
var (
	// ErrUnrecognizedNaming is returned when a path matches no known split convention.
	ErrUnrecognizedNaming = errors.New("unrecognized split archive naming")
	// ErrMissingMainArchive is returned when .zNN parts exist without their .zip.
	ErrMissingMainArchive = errors.New("split archive main .zip not found")
	// ErrPartNotFound is returned when the given part is missing or is a directory.
	ErrPartNotFound = errors.New("archive part not found")
)

// Convention identifies how the parts of an archive are named.
type Convention string

const (
	// ConventionNumeric covers <base>.zip.001, <base>.zip.002, ...
	ConventionNumeric Convention = "numeric"
	// ConventionSplit covers <base>.z01, <base>.z02, ... followed by <base>.zip.
	ConventionSplit Convention = "split"
	// ConventionComplete is a single self-contained <name>.zip.
	ConventionComplete Convention = "complete"
)

// NoOrdinal marks a fragment that is not part of a numbered sequence.
const NoOrdinal = -1

// splitMainOrdinal sorts the .zip of a split set after every .zNN part.
const splitMainOrdinal = 100

var (
	numericPartRe = regexp.MustCompile(`^(.+\.zip)\.(\d{3})$`)
	splitPartRe   = regexp.MustCompile(`(?i)^(.+)\.z(\d{2})$`)
)

// Fragment is one on-disk file of a (possibly split) archive.
type Fragment struct {
	// Ordinal determines concatenation order. NoOrdinal for complete archives.
	Ordinal    int
	Path       string
	Convention Convention
}

// NamingError reports a fragment path that could not be resolved.
type NamingError struct {
	Path string
	Err  error
}

func (e *NamingError) Error() string {
	return fmt.Sprintf("resolve %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *NamingError) Unwrap() error {
	return e.Err
}

// Resolve discovers every sibling of partPath that belongs to the same logical
// archive and returns them in concatenation order. Only the directory holding
// partPath is inspected.
func Resolve(partPath string) ([]Fragment, error) {
	info, err := os.Stat(partPath)
	if err != nil || info.IsDir() {
		return nil, &NamingError{Path: partPath, Err: ErrPartNotFound}
	}

	dir := filepath.Dir(partPath)
	name := filepath.Base(partPath)

	if m := numericPartRe.FindStringSubmatch(name); m != nil {
		parts, err := resolveNumeric(dir, m[1])
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			return nil, &NamingError{Path: partPath, Err: ErrPartNotFound}
		}
		return parts, nil
	}

	if m := splitPartRe.FindStringSubmatch(name); m != nil {
		return resolveSplit(dir, m[1], partPath)
	}

	if strings.EqualFold(filepath.Ext(name), ".zip") {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		parts, err := splitSiblings(dir, base)
		if err != nil {
			return nil, &NamingError{Path: partPath, Err: err}
		}
		if len(parts) > 0 {
			return append(parts, Fragment{Ordinal: splitMainOrdinal, Path: partPath, Convention: ConventionSplit}), nil
		}
		return []Fragment{{Ordinal: NoOrdinal, Path: partPath, Convention: ConventionComplete}}, nil
	}

	return nil, &NamingError{Path: partPath, Err: ErrUnrecognizedNaming}
}

func resolveNumeric(dir, base string) ([]Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &NamingError{Path: filepath.Join(dir, base), Err: err}
	}

	var parts []Fragment
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := numericPartRe.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != base {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		parts = append(parts, Fragment{Ordinal: n, Path: filepath.Join(dir, entry.Name()), Convention: ConventionNumeric})
	}

	sortFragments(parts)
	return parts, nil
}

func resolveSplit(dir, base, partPath string) ([]Fragment, error) {
	parts, err := splitSiblings(dir, base)
	if err != nil {
		return nil, &NamingError{Path: partPath, Err: err}
	}

	mainZip, ok := findMainZip(dir, base)
	if !ok {
		return nil, &NamingError{Path: partPath, Err: ErrMissingMainArchive}
	}

	return append(parts, Fragment{Ordinal: splitMainOrdinal, Path: mainZip, Convention: ConventionSplit}), nil
}

// splitSiblings returns the .zNN parts sharing base, sorted by part number.
func splitSiblings(dir, base string) ([]Fragment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var parts []Fragment
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := splitPartRe.FindStringSubmatch(entry.Name())
		if m == nil || m[1] != base {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		parts = append(parts, Fragment{Ordinal: n, Path: filepath.Join(dir, entry.Name()), Convention: ConventionSplit})
	}

	sortFragments(parts)
	return parts, nil
}

// findMainZip looks for <base>.zip, accepting any case for the extension.
func findMainZip(dir, base string) (string, bool) {
	exact := filepath.Join(dir, base+".zip")
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".zip") {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == base {
			return filepath.Join(dir, name), true
		}
	}
	return "", false
}

func sortFragments(parts []Fragment) {
	sort.SliceStable(parts, func(i, j int) bool {
		return parts[i].Ordinal < parts[j].Ordinal
	})
}

// Names returns the base names of fragments, in order.
func Names(parts []Fragment) []string {
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, filepath.Base(p.Path))
	}
	return names
}
