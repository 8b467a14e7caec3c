package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseParts_BundledSample(t *testing.T) {
	reqs, err := parseParts(bytes.NewReader(sampleParts), false)
	require.NoError(t, err)
	require.Len(t, reqs, 10)

	assert.Equal(t, "RES-10K-001", reqs[0].PartID)
	assert.Equal(t, "10kΩ Resistor 0.25W 5%", reqs[0].Description)
	assert.Equal(t, 250, reqs[0].Quantity)
	assert.Equal(t, 50, reqs[0].MinQuantity)
	require.NotNil(t, reqs[0].UnitCost)
	assert.Equal(t, "0.02", reqs[0].UnitCost.String())

	crypto := reqs[5]
	assert.Equal(t, "CRYPTO-CHIP-001", crypto.PartID)
	assert.True(t, crypto.IsSensitive)
	assert.Nil(t, crypto.UnitCost)
}

func TestParseParts_Latin1(t *testing.T) {
	sheet := "part_id,description,quantity\nCAP-1U,1µF cerámico,12\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(sheet)
	require.NoError(t, err)

	reqs, err := parseParts(strings.NewReader(encoded), true)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "1µF cerámico", reqs[0].Description)
	assert.Equal(t, 12, reqs[0].Quantity)
}

func TestParseParts_SkipsBlankRowsAndStripsBOM(t *testing.T) {
	sheet := "\ufeffPart_ID,Description\n,\nLED-G,Green LED\n"

	reqs, err := parseParts(strings.NewReader(sheet), false)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "LED-G", reqs[0].PartID)
}

func TestParseParts_Errors(t *testing.T) {
	cases := []struct {
		name  string
		sheet string
		want  string
	}{
		{"empty", "", "empty parts sheet"},
		{"no description column", "part_id,quantity\nA,1\n", `missing column "description"`},
		{"bad quantity", "part_id,description,quantity\nA,a part,many\n", "line 2: quantity"},
		{"bad flag", "part_id,description,is_sensitive\nA,a part,maybe\n", "line 2: is_sensitive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseParts(strings.NewReader(tc.sheet), false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
