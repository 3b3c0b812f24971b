// Package extract turns uploaded document bytes into plain text.
//
// The decoder is chosen from a table keyed by the lower-cased file extension;
// extensions missing from the table are decoded as UTF-8 text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrExtraction means the bytes could not be parsed as the declared format.
	ErrExtraction = errors.New("extraction failed")
	// ErrEmptyContent means the document parsed but holds no usable text.
	ErrEmptyContent = errors.New("document has no text content")
)

// Decoder converts the raw bytes of one format to text.
type Decoder func(content []byte) (string, error)

// Extractor dispatches documents to format decoders by extension.
type Extractor struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	fallback Decoder
}

// optionalDecoders are off by default; Enable turns them on by extension.
var optionalDecoders = map[string]Decoder{
	".xlsx": decodeXLSX,
	".pptx": decodePPTX,
	".odp":  decodeODP,
	".ods":  decodeODS,
	".odt":  decodeWithCat,
	".rtf":  decodeWithCat,
}

// OptionalFormats lists the extensions Enable accepts, sorted.
func OptionalFormats() []string {
	exts := make([]string, 0, len(optionalDecoders))
	for ext := range optionalDecoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// NewExtractor returns an Extractor that decodes .pdf and .docx and treats
// every other extension as UTF-8 text.
func NewExtractor() *Extractor {
	e := &Extractor{
		decoders: make(map[string]Decoder),
		fallback: decodePlain,
	}
	e.Register(".pdf", decodePDF)
	e.Register(".docx", decodeDOCX)
	return e
}

// Enable registers the optional decoders for exts. Unknown extensions are
// an error and leave the table unchanged.
func (e *Extractor) Enable(exts ...string) error {
	for _, ext := range exts {
		if _, ok := optionalDecoders[normalizeExt(ext)]; !ok {
			return fmt.Errorf("unsupported format %q (optional: %s)", ext, strings.Join(OptionalFormats(), ", "))
		}
	}
	for _, ext := range exts {
		ext = normalizeExt(ext)
		e.Register(ext, optionalDecoders[ext])
	}
	return nil
}

// Register adds or replaces the decoder for ext (with or without the leading dot).
func (e *Extractor) Register(ext string, d Decoder) {
	ext = normalizeExt(ext)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.decoders[ext] = d
}

// Supported returns the registered extensions in sorted order.
func (e *Extractor) Supported() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	exts := make([]string, 0, len(e.decoders))
	for ext := range e.decoders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Extract returns the text of content, using filename's extension to pick
// the decoder. Errors wrap ErrExtraction when the decoder rejects the bytes
// and ErrEmptyContent when the text is blank. Text is returned untrimmed.
func (e *Extractor) Extract(content []byte, filename string) (string, error) {
	decoder := e.decoderFor(filepath.Ext(filename))

	text, err := safeDecode(decoder, content)
	if err != nil {
		if errors.Is(err, ErrExtraction) {
			return "", fmt.Errorf("%s: %w", filename, err)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrExtraction, filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, filename)
	}
	return text, nil
}

// ExtractFile reads the file at path and extracts it under its base name.
func (e *Extractor) ExtractFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.Extract(content, filepath.Base(path))
}

func (e *Extractor) decoderFor(ext string) Decoder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if d, ok := e.decoders[normalizeExt(ext)]; ok {
		return d
	}
	return e.fallback
}

// safeDecode turns decoder panics on malformed input into errors.
func safeDecode(d Decoder, content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("decoder panic: %v", r)
		}
	}()
	return d(content)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
