package extract

import (
	"regexp"
	"strings"
)

// OpenDocument presentations and spreadsheets keep their text in content.xml,
// inside text:p, text:span, and text:h elements.
var odfTextNodes = []*regexp.Regexp{
	regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`),
	regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`),
	regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`),
}

func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content)
	if err != nil {
		return "", err
	}
	doc, err := readZipPart(zr, "content.xml")
	if err != nil {
		return "", err
	}
	s := string(doc)
	var b strings.Builder
	for _, re := range odfTextNodes {
		joinMatches(&b, re.FindAllStringSubmatch(s, -1))
	}
	return b.String(), nil
}
