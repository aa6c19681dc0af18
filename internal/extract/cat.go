package extract

import (
	"fmt"
	"strings"

	"github.com/lu4p/cat"
)

// extractCat handles .odt and .rtf through lu4p/cat, which sniffs the format
// from the bytes.
func extractCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return strings.TrimSpace(text), nil
}
