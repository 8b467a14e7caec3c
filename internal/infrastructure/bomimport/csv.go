package bomimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
)

// Header aliases, compared lower-cased and trimmed.
var (
	refHeaders       = []string{"references", "reference", "refs", "designator", "designators"}
	valueHeaders     = []string{"value", "val"}
	footprintHeaders = []string{"footprint", "package"}
	qtyHeaders       = []string{"quantity", "qty", "qnty", "count"}
	partHeaders      = []string{"part", "part number", "partnumber", "part_id", "part id", "mpn", "manufacturer part number"}
	descHeaders      = []string{"description", "desc"}
)

// toUTF8 normalizes the file encoding: UTF-8 (with or without BOM), UTF-16 with BOM,
// and anything else that is not valid UTF-8 is read as Windows-1252 (spreadsheet exports).
func toUTF8(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return nil, fmt.Errorf("%w: bad UTF-16 text: %v", domain.ErrInvalidInput, err)
		}
		return out, nil
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], nil
	case utf8.Valid(data):
		return data, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable text: %v", domain.ErrInvalidInput, err)
	}
	return out, nil
}

// sniffDelimiter picks the most frequent of , ; and tab on the header line.
func sniffDelimiter(data []byte) rune {
	header, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func columnOf(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

func decodeCSV(raw []byte) ([]ports.ImportedLine, error) {
	data, err := toUTF8(raw)
	if err != nil {
		return nil, err
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading CSV header: %v", domain.ErrInvalidInput, err)
	}
	col := struct{ ref, value, fp, qty, part, desc int }{
		ref:   columnOf(header, refHeaders),
		value: columnOf(header, valueHeaders),
		fp:    columnOf(header, footprintHeaders),
		qty:   columnOf(header, qtyHeaders),
		part:  columnOf(header, partHeaders),
		desc:  columnOf(header, descHeaders),
	}
	if col.value < 0 && col.part < 0 && col.fp < 0 {
		return nil, fmt.Errorf("%w: CSV needs a Value, Footprint or Part column", domain.ErrInvalidInput)
	}

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	g := newGrouper()
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: CSV line %d: %v", domain.ErrInvalidInput, line, err)
		}
		l := ports.ImportedLine{
			References:  splitRefs(field(rec, col.ref)),
			Value:       field(rec, col.value),
			Footprint:   field(rec, col.fp),
			PartNumber:  field(rec, col.part),
			Description: field(rec, col.desc),
		}
		if l.Value == "" && l.Footprint == "" && l.PartNumber == "" {
			continue
		}
		l.Quantity = quantityOf(field(rec, col.qty), len(l.References))
		g.add(l)
	}
	return g.result(), nil
}

// quantityOf prefers the explicit column, then the designator count, then 1.
func quantityOf(raw string, refs int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	if refs > 0 {
		return refs
	}
	return 1
}
