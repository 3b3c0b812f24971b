package extract

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxDefaultPart      = "word/document.xml"
	contentTypesPart     = "[Content_Types].xml"
	docxMainContentType  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	docxMacroContentType = "application/vnd.ms-word.document.macroEnabled.main+xml"

	wordNamespace       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	wordStrictNamespace = "http://purl.oclc.org/ooxml/wordprocessingml/main"
	markupCompatNS      = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// docxMainPart resolves the main document part from [Content_Types].xml,
// falling back to word/document.xml.
func docxMainPart(types []byte) string {
	var ct contentTypes
	if err := xml.Unmarshal(types, &ct); err != nil {
		return docxDefaultPart
	}
	for _, o := range ct.Overrides {
		if o.ContentType == docxMainContentType || o.ContentType == docxMacroContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxDefaultPart
}

// decodeDOCX returns the text of every body paragraph in document order, each
// followed by a line break. Runs within a paragraph are joined as written.
func decodeDOCX(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}

	part := docxDefaultPart
	if types, err := readZipPart(zr, contentTypesPart); err == nil {
		part = docxMainPart(types)
	}
	body, err := readZipPart(zr, part)
	if err != nil {
		return "", err
	}
	return docxParagraphs(body)
}

func isWordElement(name xml.Name, local string) bool {
	return name.Local == local && (name.Space == wordNamespace || name.Space == wordStrictNamespace)
}

// docxParagraphs collects the direct w:p children of w:body. Paragraphs in
// tables, content controls and text boxes are not part of the body text.
func docxParagraphs(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	var (
		out     strings.Builder
		para    *strings.Builder
		inBody  bool
		inText  bool
		skipErr error
	)
	skip := func() bool {
		if err := dec.Skip(); err != nil {
			skipErr = fmt.Errorf("parse document xml: %w", err)
			return false
		}
		return true
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document xml: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case el.Name.Space == markupCompatNS && el.Name.Local == "Fallback",
				isWordElement(el.Name, "txbxContent"):
				if !skip() {
					return "", skipErr
				}
			case isWordElement(el.Name, "body"):
				inBody = true
			case isWordElement(el.Name, "p"):
				if !inBody || para != nil {
					if !skip() {
						return "", skipErr
					}
					continue
				}
				para = &strings.Builder{}
			case para == nil && inBody:
				// Tables, content controls and section properties at body level.
				if !skip() {
					return "", skipErr
				}
			case isWordElement(el.Name, "t"):
				inText = true
			case isWordElement(el.Name, "tab") && para != nil:
				para.WriteByte('\t')
			case (isWordElement(el.Name, "br") || isWordElement(el.Name, "cr")) && para != nil:
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch {
			case isWordElement(el.Name, "t"):
				inText = false
			case isWordElement(el.Name, "p") && para != nil:
				out.WriteString(para.String())
				out.WriteByte('\n')
				para = nil
			case isWordElement(el.Name, "body"):
				inBody = false
			}
		case xml.CharData:
			if inText && para != nil {
				para.Write(el)
			}
		}
	}
	return out.String(), nil
}
