package source

import (
	"context"
	"regexp"
	"strings"
)

var (
	staticImportRe = regexp.MustCompile(`^\s*import\s+(?:type\s+)?(?:[\w$*{}\s,]+\s+from\s+)?['"]([^'"]+)['"]`)
	reexportRe     = regexp.MustCompile(`^\s*export\s+(?:type\s+)?(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s+from\s+['"]([^'"]+)['"]`)
	requireRe      = regexp.MustCompile(`\brequire\(\s*(?:['"]([^'"]+)['"]\s*\))?`)
	dynamicRe      = regexp.MustCompile(`\bimport\(\s*(?:['"]([^'"]+)['"]\s*\))?`)
	commonJSRe     = regexp.MustCompile(`\b(?:module\.exports|exports\.[\w$]+)\s*=`)
	topAwaitRe     = regexp.MustCompile(`^await\s`)
	exportDeclRe   = regexp.MustCompile(`^\s*export\s+(?:declare\s+)?(?:async\s+)?(?:function\*?|class|const|let|var)\s+([\w$]+)`)
	exportDefault  = regexp.MustCompile(`^\s*export\s+default\b`)
	exportListRe   = regexp.MustCompile(`^\s*export\s+\{([^}]*)\}\s*;?\s*$`)
	strictRe       = regexp.MustCompile(`^\s*['"]use strict['"]`)
)

const (
	requireExpression = "the request of a dependency is an expression"
	importExpression  = "the request of a dynamic import is an expression"
)

// lineScanner recognizes the import forms that matter for the module graph
// one line at a time. It does not parse JavaScript: statements spanning
// lines and string literals that look like code are not understood.
type lineScanner struct{}

func (lineScanner) scan(ctx context.Context, _ string, src []byte) (*scanResult, error) {
	res := &scanResult{}
	inComment := false

	for i, raw := range strings.Split(string(src), "\n") {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := stripComments(raw, &inComment)
		if strings.TrimSpace(line) == "" {
			continue
		}
		lineNo := i + 1

		if i == 0 || !res.esm && !res.cjs && !res.sideEffects {
			if strictRe.MatchString(line) {
				res.strict = true
				continue
			}
		}

		if match := staticImportRe.FindStringSubmatch(line); match != nil {
			res.esm = true
			res.deps = append(res.deps, reference{match[1], kindESMImport, lineNo, strings.Index(line, match[1]), 0})
			continue
		}
		if match := reexportRe.FindStringSubmatch(line); match != nil {
			res.esm = true
			res.deps = append(res.deps, reference{match[1], kindReexport, lineNo, strings.Index(line, match[1]), 0})
			continue
		}

		statement := true
		if match := exportDeclRe.FindStringSubmatch(line); match != nil {
			res.esm = true
			res.exports = append(res.exports, match[1])
			statement = false
		} else if exportDefault.MatchString(line) {
			res.esm = true
			res.exports = append(res.exports, "default")
			statement = false
		} else if match := exportListRe.FindStringSubmatch(line); match != nil {
			res.esm = true
			res.exports = append(res.exports, exportNames(match[1])...)
			statement = false
		}

		if topAwaitRe.MatchString(line) {
			res.topLevelAwait = true
		}

		for _, loc := range requireRe.FindAllStringSubmatchIndex(line, -1) {
			res.cjs = true
			if loc[2] < 0 {
				res.expressions = append(res.expressions, expression{requireExpression, lineNo, loc[0]})
				continue
			}
			res.deps = append(res.deps, reference{line[loc[2]:loc[3]], kindRequire, lineNo, loc[2], loc[0]})
		}

		for _, loc := range dynamicRe.FindAllStringSubmatchIndex(line, -1) {
			if loc[2] < 0 {
				res.expressions = append(res.expressions, expression{importExpression, lineNo, loc[0]})
				continue
			}
			res.dynamic = append(res.dynamic, reference{line[loc[2]:loc[3]], kindDynamic, lineNo, loc[2], loc[0]})
		}

		if commonJSRe.MatchString(line) {
			res.cjs = true
			res.cjsExports = true
		}

		if statement {
			res.sideEffects = true
		}
	}
	return res, nil
}

// exportNames parses the inside of an export list, honouring "as" renames.
func exportNames(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		fields := strings.Fields(part)
		switch {
		case len(fields) == 0:
		case len(fields) >= 3 && fields[len(fields)-2] == "as":
			names = append(names, fields[len(fields)-1])
		default:
			names = append(names, fields[0])
		}
	}
	return names
}

// stripComments removes line and block comments from line. inBlock carries
// block comment state across lines. String literals are not tracked.
func stripComments(line string, inBlock *bool) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		if *inBlock {
			if strings.HasPrefix(line[i:], "*/") {
				*inBlock = false
				i++
			}
			continue
		}
		if strings.HasPrefix(line[i:], "/*") {
			*inBlock = true
			i++
			continue
		}
		if strings.HasPrefix(line[i:], "//") && (i == 0 || line[i-1] != ':') {
			break
		}
		b.WriteByte(line[i])
	}
	return b.String()
}
