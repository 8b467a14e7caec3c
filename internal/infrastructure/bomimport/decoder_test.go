package bomimport_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/infrastructure/bomimport"
)

// ──────────────────────────────────────────────────────────────────────────────
// CSV
// ──────────────────────────────────────────────────────────────────────────────

const kicadCSV = `"Reference","Value","Footprint","Qty","MPN"
"R1,R2,R3","10k","Resistor_SMD:R_0402","3",""
"C1","100nF","Capacitor_SMD:C_0402","1",""
"U1","STM32L4","Package_QFP:LQFP-64","1","STM32L476RGT6"
"R7","10k","Resistor_SMD:R_0402","",""
`

func TestDecodeCSV_KiCadExport(t *testing.T) {
	lines, err := bomimport.NewDecoder().Decode(ports.BOMFormatCSV, []byte(kicadCSV))
	require.NoError(t, err)

	require.Len(t, lines, 3, "R7 joins the 10k group")
	assert.Equal(t, []string{"R1", "R2", "R3", "R7"}, lines[0].References)
	assert.Equal(t, 4, lines[0].Quantity, "explicit 3 plus one designator")
	assert.Equal(t, "100nF", lines[1].Value)
	assert.Equal(t, "STM32L476RGT6", lines[2].PartNumber)
}

func TestDecodeCSV_SemicolonsAndHeaderCase(t *testing.T) {
	data := "references;VALUE;footprint;quantity\nD1 D2;LED;0603;\n"

	lines, err := bomimport.NewDecoder().Decode(ports.BOMFormatCSV, []byte(data))

	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "LED", lines[0].Value)
	assert.Equal(t, 2, lines[0].Quantity, "falls back to the designator count")
}

func TestDecodeCSV_Encodings(t *testing.T) {
	plain := "Reference,Value,Footprint,Quantity\nJ1,Molex µFit,Conn,1\n"

	latin1, err := charmap.Windows1252.NewEncoder().String(plain)
	require.NoError(t, err)
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(plain)
	require.NoError(t, err)

	for name, data := range map[string]string{
		"utf-8 with BOM": "\xEF\xBB\xBF" + plain,
		"windows-1252":   latin1,
		"utf-16le":       utf16,
	} {
		lines, err := bomimport.NewDecoder().Decode(ports.BOMFormatCSV, []byte(data))
		require.NoError(t, err, name)
		require.Len(t, lines, 1, name)
		assert.Equal(t, "Molex µFit", lines[0].Value, name)
	}
}

func TestDecodeCSV_Rejects(t *testing.T) {
	d := bomimport.NewDecoder()
	cases := map[string]string{
		"empty":          "",
		"no usable cols": "Reference,Notes\nR1,hello\n",
		"header only":    "Reference,Value,Footprint\n",
	}
	for name, data := range cases {
		_, err := d.Decode(ports.BOMFormatCSV, []byte(data))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}

	_, err := d.Decode("gerber", []byte("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// KiCad XML
// ──────────────────────────────────────────────────────────────────────────────

const kicadXML = `<?xml version="1.0" encoding="UTF-8"?>
<export version="E">
  <components>
    <comp ref="R1">
      <value>10k</value>
      <footprint>Resistor_SMD:R_0402</footprint>
      <libsource lib="Device" part="R" description="Resistor"/>
    </comp>
    <comp ref="R2">
      <value>10k</value>
      <footprint>Resistor_SMD:R_0402</footprint>
    </comp>
    <comp ref="U1">
      <value>BMI088</value>
      <footprint>Package_LGA:LGA-16</footprint>
      <fields>
        <field name="MPN">BMI088</field>
        <field name="Description">6-axis IMU</field>
      </fields>
    </comp>
    <comp ref="#PWR01">
      <value>GND</value>
    </comp>
  </components>
</export>`

func TestDecodeKiCadXML(t *testing.T) {
	lines, err := bomimport.NewDecoder().Decode(ports.BOMFormatKiCadXML, []byte(kicadXML))
	require.NoError(t, err)

	require.Len(t, lines, 2, "power symbols are skipped")
	assert.Equal(t, []string{"R1", "R2"}, lines[0].References)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Resistor", lines[0].Description)
	assert.Equal(t, "BMI088", lines[1].PartNumber)
	assert.Equal(t, "6-axis IMU", lines[1].Description)
}

func TestDecodeKiCadXML_Rejects(t *testing.T) {
	d := bomimport.NewDecoder()

	_, err := d.Decode(ports.BOMFormatKiCadXML, []byte("<export><components>"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "truncated")

	_, err = d.Decode(ports.BOMFormatKiCadXML, []byte(`<bom><comp ref="R1"/></bom>`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "wrong root")
}
