package bomimport

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
)

var partFieldNames = map[string]bool{
	"mpn": true, "part": true, "part number": true, "partnumber": true, "part_id": true, "manufacturer part number": true,
}

// decodeKiCadXML reads the netlist export (export/components/comp) and groups components
// by value, footprint and part number. Power symbols (#PWR, #FLG) are skipped.
func decodeKiCadXML(data []byte) ([]ports.ImportedLine, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: malformed XML: %v", domain.ErrInvalidInput, err)
	}
	root := doc.SelectElement("export")
	if root == nil {
		return nil, fmt.Errorf("%w: not a KiCad export (missing <export>)", domain.ErrInvalidInput)
	}
	comps := root.FindElements("./components/comp")
	if len(comps) == 0 {
		return nil, fmt.Errorf("%w: KiCad export has no components", domain.ErrInvalidInput)
	}

	g := newGrouper()
	for _, c := range comps {
		ref := strings.TrimSpace(c.SelectAttrValue("ref", ""))
		if strings.HasPrefix(ref, "#") {
			continue
		}
		l := ports.ImportedLine{
			Value:     childText(c, "value"),
			Footprint: childText(c, "footprint"),
			Quantity:  1,
		}
		if ref != "" {
			l.References = []string{ref}
		}
		for _, f := range c.FindElements("./fields/field") {
			name := strings.ToLower(strings.TrimSpace(f.SelectAttrValue("name", "")))
			val := strings.TrimSpace(f.Text())
			switch {
			case val == "" || val == "~":
			case partFieldNames[name]:
				l.PartNumber = val
			case name == "description" && l.Description == "":
				l.Description = val
			}
		}
		if l.Description == "" {
			if ls := c.SelectElement("libsource"); ls != nil {
				l.Description = strings.TrimSpace(ls.SelectAttrValue("description", ""))
			}
		}
		if l.Value == "" && l.Footprint == "" && l.PartNumber == "" {
			continue
		}
		g.add(l)
	}
	return g.result(), nil
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		if s := strings.TrimSpace(c.Text()); s != "~" {
			return s
		}
	}
	return ""
}
