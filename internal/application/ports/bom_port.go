package ports

// BOM file formats accepted by the importer.
const (
	BOMFormatCSV      = "csv"
	BOMFormatKiCadXML = "kicad-xml"
)

// ImportedLine is one grouped row of an exported BOM.
type ImportedLine struct {
	References  []string
	Value       string
	Footprint   string
	PartNumber  string // optional explicit part/MPN column
	Description string
	Quantity    int
}

// BOMDecoder parses BOM exports from EDA tools.
type BOMDecoder interface {
	Decode(format string, data []byte) ([]ImportedLine, error)
}
