package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Office Open XML packages are zips of XML parts. Text lives in <w:t> nodes
// for Word documents and <a:t> nodes for presentation slides; matching the
// text nodes directly keeps content extractable regardless of paragraph and
// run attributes.
var (
	wordTextNode  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	slideTextNode = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
)

const wordDocumentPart = "word/document.xml"

func openZip(content []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("not a zip: %w", err)
	}
	return zr, nil
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}

func joinMatches(b *strings.Builder, matches [][]string) {
	for _, m := range matches {
		text := strings.TrimSpace(m[1])
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
}

// extractWordXML extracts the text nodes of a .docx main document part.
func extractWordXML(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	doc, err := readZipPart(zr, wordDocumentPart)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	joinMatches(&b, wordTextNode.FindAllStringSubmatch(string(doc), -1))
	return b.String(), nil
}

// extractSlides extracts the text nodes of every ppt/slides/slideN.xml part.
func extractSlides(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		slide, err := readZipPart(zr, f.Name)
		if err != nil {
			return "", err
		}
		joinMatches(&b, slideTextNode.FindAllStringSubmatch(string(slide), -1))
	}
	return b.String(), nil
}
