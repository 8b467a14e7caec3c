package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
)

// Optional columns: bin_id, location_within_bin, quantity, min_quantity, part_link,
// is_sensitive, unit_cost, value, footprint. Headers are matched case-insensitively.
var requiredColumns = []string{"part_id", "description"}

// decodeInput strips a UTF-8 BOM, or re-encodes Latin-1 spreadsheets exported by older tools.
func decodeInput(r io.Reader, latin1 bool) io.Reader {
	if latin1 {
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// parseParts reads the parts sheet into create requests. Blank rows are skipped.
func parseParts(r io.Reader, latin1 bool) ([]dto.CreatePartRequest, error) {
	cr := csv.NewReader(decodeInput(r, latin1))
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty parts sheet")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var out []dto.CreatePartRequest
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if field("part_id") == "" && field("description") == "" {
			continue
		}

		req := dto.CreatePartRequest{
			PartID:      field("part_id"),
			Description: field("description"),
			BinID:       field("bin_id"),
			BinLocation: field("location_within_bin"),
			Link:        field("part_link"),
			Value:       field("value"),
			Footprint:   field("footprint"),
		}
		if req.Quantity, err = intField(field("quantity")); err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", line, err)
		}
		if req.MinQuantity, err = intField(field("min_quantity")); err != nil {
			return nil, fmt.Errorf("line %d: min_quantity: %w", line, err)
		}
		if s := field("is_sensitive"); s != "" {
			if req.IsSensitive, err = strconv.ParseBool(s); err != nil {
				return nil, fmt.Errorf("line %d: is_sensitive: %w", line, err)
			}
		}
		if s := field("unit_cost"); s != "" {
			cost, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("line %d: unit_cost: %w", line, err)
			}
			req.UnitCost = &cost
		}
		out = append(out, req)
	}
	return out, nil
}

func intField(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
