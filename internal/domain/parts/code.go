// Package parts knows the club's internal part-number scheme: a two-digit subassembly,
// a four-digit sequence and an optional X.Y revision, e.g. "03-0012" or "03-0012v1.2".
// External (vendor) part numbers are free-form and not checked here.
package parts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stanfordssi/sats-inventory/internal/domain"
)

var (
	internalRe    = regexp.MustCompile(`^(\d{2})-(\d{4})(?:v(\d+\.\d+))?$`)
	subassemblyRe = regexp.MustCompile(`^\d{2}$`)
)

// InternalCode is a parsed internal part number.
type InternalCode struct {
	Subassembly string
	Sequence    int
	Revision    string
}

func (c InternalCode) String() string {
	s := fmt.Sprintf("%s-%04d", c.Subassembly, c.Sequence)
	if c.Revision != "" {
		s += "v" + c.Revision
	}
	return s
}

// ParseInternal parses s; ok is false for anything not in the internal format.
func ParseInternal(s string) (InternalCode, bool) {
	m := internalRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return InternalCode{}, false
	}
	seq, _ := strconv.Atoi(m[2])
	return InternalCode{Subassembly: m[1], Sequence: seq, Revision: m[3]}, true
}

// ValidSubassembly reports whether sub is a two-digit subassembly code.
func ValidSubassembly(sub string) bool { return subassemblyRe.MatchString(sub) }

// Highest returns the highest internal code of subassembly sub among existing numbers.
func Highest(sub string, existing []string) (InternalCode, bool) {
	var best InternalCode
	found := false
	for _, n := range existing {
		c, ok := ParseInternal(n)
		if !ok || c.Subassembly != sub {
			continue
		}
		if !found || c.Sequence > best.Sequence ||
			(c.Sequence == best.Sequence && compareRevision(c.Revision, best.Revision) > 0) {
			best = c
			found = true
		}
	}
	return best, found
}

// Next suggests the next free sequence in subassembly sub.
func Next(sub string, existing []string) (string, error) {
	if !ValidSubassembly(sub) {
		return "", fmt.Errorf("%w: subassembly must be two digits", domain.ErrInvalidInput)
	}
	h, ok := Highest(sub, existing)
	if !ok {
		return InternalCode{Subassembly: sub, Sequence: 1}.String(), nil
	}
	if h.Sequence >= 9999 {
		return "", fmt.Errorf("%w: subassembly %s is full", domain.ErrConflict, sub)
	}
	return InternalCode{Subassembly: sub, Sequence: h.Sequence + 1}.String(), nil
}

// ValidateNew checks a new internal number against the existing ones of its subassembly:
// the sequence may not skip past highest+1, and reusing the highest sequence needs a
// revision newer than the one already stored.
func ValidateNew(candidate string, existing []string) error {
	c, ok := ParseInternal(candidate)
	if !ok {
		return nil
	}
	h, found := Highest(c.Subassembly, existing)
	if !found {
		return nil
	}
	if c.Sequence > h.Sequence+1 {
		return fmt.Errorf("%w: part code %04d skips ahead, use %04d or lower",
			domain.ErrInvalidInput, c.Sequence, h.Sequence+1)
	}
	if c.Sequence == h.Sequence && h.Revision != "" {
		if c.Revision == "" {
			return fmt.Errorf("%w: %s already exists with revision %s, specify a revision",
				domain.ErrInvalidInput, InternalCode{Subassembly: h.Subassembly, Sequence: h.Sequence}, h.Revision)
		}
		if compareRevision(c.Revision, h.Revision) <= 0 {
			return fmt.Errorf("%w: revision must be newer than %s", domain.ErrInvalidInput, h.Revision)
		}
	}
	return nil
}

// compareRevision compares "X.Y" revisions numerically; empty sorts first.
func compareRevision(a, b string) int {
	am, an := splitRevision(a)
	bm, bn := splitRevision(b)
	switch {
	case am != bm:
		return am - bm
	default:
		return an - bn
	}
}

func splitRevision(r string) (int, int) {
	if r == "" {
		return -1, -1
	}
	major, minor, _ := strings.Cut(r, ".")
	m, _ := strconv.Atoi(major)
	n, _ := strconv.Atoi(minor)
	return m, n
}
