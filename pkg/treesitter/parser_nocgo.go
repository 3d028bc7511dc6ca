//go:build !cgo

package treesitter

// Available reports whether parsers can be created.
func Available() bool { return false }

// NewParser returns ErrUnavailable without CGO.
func NewParser(lang Language) (Parser, error) {
	if _, ok := map[Language]bool{JavaScript: true, TypeScript: true, TSX: true}[lang]; !ok {
		return nil, ErrLanguageNotSupported{Language: lang}
	}
	return nil, ErrUnavailable
}
