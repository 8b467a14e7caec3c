// Package bomimport parses bill-of-materials exports from EDA tools (KiCad CSV and XML).
package bomimport

import (
	"fmt"
	"strings"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
)

// MaxRows bounds the number of grouped lines accepted from one file.
const MaxRows = 2000

var _ ports.BOMDecoder = (*Decoder)(nil)

// Decoder implements ports.BOMDecoder.
type Decoder struct{}

// NewDecoder builds the decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode dispatches on format. Malformed input is reported as domain.ErrInvalidInput.
func (d *Decoder) Decode(format string, data []byte) ([]ports.ImportedLine, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty BOM file", domain.ErrInvalidInput)
	}
	var (
		lines []ports.ImportedLine
		err   error
	)
	switch format {
	case ports.BOMFormatCSV, "":
		lines, err = decodeCSV(data)
	case ports.BOMFormatKiCadXML:
		lines, err = decodeKiCadXML(data)
	default:
		return nil, fmt.Errorf("%w: unknown BOM format %q", domain.ErrInvalidInput, format)
	}
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: BOM file has no component rows", domain.ErrInvalidInput)
	}
	if len(lines) > MaxRows {
		return nil, fmt.Errorf("%w: BOM has %d lines, limit is %d", domain.ErrInvalidInput, len(lines), MaxRows)
	}
	return lines, nil
}

// splitRefs splits "R1, R2 R3" into designators.
func splitRefs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
}

// grouper merges components sharing value, footprint and part number, keeping first-seen order.
type grouper struct {
	order []string
	lines map[string]*ports.ImportedLine
}

func newGrouper() *grouper { return &grouper{lines: map[string]*ports.ImportedLine{}} }

func (g *grouper) add(l ports.ImportedLine) {
	key := strings.ToLower(l.Value + "\x00" + l.Footprint + "\x00" + l.PartNumber)
	cur, ok := g.lines[key]
	if !ok {
		cp := l
		g.lines[key] = &cp
		g.order = append(g.order, key)
		return
	}
	cur.References = append(cur.References, l.References...)
	cur.Quantity += l.Quantity
	if cur.Description == "" {
		cur.Description = l.Description
	}
}

func (g *grouper) result() []ports.ImportedLine {
	out := make([]ports.ImportedLine, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, *g.lines[k])
	}
	return out
}
