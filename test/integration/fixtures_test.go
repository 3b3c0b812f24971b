package integration

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

type fixture struct {
	name  string
	text  string
	query string
}

// corpus has one document per supported format, each on a distinct topic.
var corpus = []fixture{
	{"bread.txt", "Sourdough bread needs a lively starter and a long slow fermentation.", "sourdough starter fermentation"},
	{"cluster.md", "# Scheduling\n\nKubernetes schedules containers across a cluster of worker nodes.", "kubernetes containers cluster"},
	{"telescope.rst", "Telescope mirrors gather starlight from distant galaxies.", "telescope starlight galaxies"},
	{"glaciers.docx", "Glaciers carve valleys as the ice slowly moves downhill.", "glaciers ice valleys"},
	{"invoice.xlsx", "Invoice\ttotal\tamount\tdue", "invoice amount due"},
	{"revenue.pptx", "Quarterly revenue growth for the board meeting", "quarterly revenue board"},
	{"volcano.odp", "Volcanic eruptions release ash and molten lava", "volcanic eruptions lava"},
	{"marathon.ods", "Marathon training plan with weekly mileage", "marathon training mileage"},
}

func fileBytes(t *testing.T, f fixture) []byte {
	t.Helper()
	switch {
	case strings.HasSuffix(f.name, ".docx"):
		return zipOf(t, map[string]string{
			"word/document.xml": `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
				f.text + `</w:t></w:r></w:p></w:body></w:document>`,
		})
	case strings.HasSuffix(f.name, ".pptx"):
		return zipOf(t, map[string]string{
			"ppt/slides/slide1.xml": `<p:sld xmlns:p="p" xmlns:a="a"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` +
				f.text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`,
		})
	case strings.HasSuffix(f.name, ".odp"), strings.HasSuffix(f.name, ".ods"):
		return zipOf(t, map[string]string{
			"content.xml": `<office:document><office:body><text:p>` + f.text + `</text:p></office:body></office:document>`,
		})
	case strings.HasSuffix(f.name, ".xlsx"):
		wb := excelize.NewFile()
		defer wb.Close()
		row := make([]interface{}, 0)
		for _, cell := range strings.Split(f.text, "\t") {
			row = append(row, cell)
		}
		if err := wb.SetSheetRow("Sheet1", "A1", &row); err != nil {
			t.Fatal(err)
		}
		var buf bytes.Buffer
		if _, err := wb.WriteTo(&buf); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	default:
		return []byte(f.text)
	}
}

func zipOf(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
