package extract

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/lu4p/cat"
	"github.com/xuri/excelize/v2"
)

const openDocumentContentPart = "content.xml"

var (
	slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	// drawingTextRe matches DrawingML text runs (<a:t>) in slide order.
	drawingTextRe = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	// odfTextRe matches OpenDocument paragraphs, headings and spans in document order.
	odfTextRe = regexp.MustCompile(`<text:(?:p|h|span)(?:\s[^>]*)?>([^<]*)</text:(?:p|h|span)>`)
)

// decodePPTX returns slide text, one line per slide, in slide number order.
func decodePPTX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}

	type slide struct {
		num  int
		name string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slidePartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: n, name: f.Name})
	}
	slices.SortFunc(slides, func(a, b slide) int { return a.num - b.num })

	var buf strings.Builder
	for _, s := range slides {
		data, err := readZipPart(zr, s.name)
		if err != nil {
			return "", err
		}
		buf.WriteString(joinMatches(drawingTextRe, data))
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

// decodeODP returns the text nodes of an OpenDocument presentation.
func decodeODP(content []byte) (string, error) {
	return decodeOpenDocument(content)
}

// decodeODS returns the cell text of an OpenDocument spreadsheet.
func decodeODS(content []byte) (string, error) {
	return decodeOpenDocument(content)
}

func decodeOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	data, err := readZipPart(zr, openDocumentContentPart)
	if err != nil {
		return "", err
	}
	return joinMatches(odfTextRe, data), nil
}

func joinMatches(re *regexp.Regexp, data []byte) string {
	var parts []string
	for _, m := range re.FindAllSubmatch(data, -1) {
		if s := strings.TrimSpace(html.UnescapeString(string(m[1]))); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// decodeXLSX returns every sheet row as a tab-separated line.
func decodeXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}

// decodeWithCat handles OpenDocument text and RTF.
func decodeWithCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", err
	}
	return text, nil
}
