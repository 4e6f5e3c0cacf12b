/*
 * Copyright (c) 2024-present unTill Pro, Ltd.
 * @author Alisher Nurmanov
 */

package source

import "regexp"

// Extract scans text lexically for import directives and pragma solidity
// version ranges. It is deliberately not a Solidity grammar: comments are
// blanked out and matches that begin inside a string literal are skipped,
// so directives inside comments or strings are not mistaken for real ones,
// but nothing else about the language is understood.
func Extract(text string) (imports []string, versionPragmas []string) {
	stripped, inString := stripCommentsAndStrings(text)
	importLocs := importRe.FindAllStringIndex(stripped, -1)
	for i, m := range importRe.FindAllStringSubmatch(stripped, -1) {
		if inString[importLocs[i][0]] {
			continue
		}
		spec := firstNonEmpty(m[1], m[2])
		if spec != "" {
			imports = append(imports, spec)
		}
	}
	pragmaLocs := pragmaRe.FindAllStringIndex(stripped, -1)
	for i, m := range pragmaRe.FindAllStringSubmatch(stripped, -1) {
		if inString[pragmaLocs[i][0]] {
			continue
		}
		versionPragmas = append(versionPragmas, m[1])
	}
	return imports, versionPragmas
}

var (
	// import "x/y.sol"; / import "x/y.sol" as Alias; / import {A, B} from "x/y.sol";
	importRe = regexp.MustCompile(`import\s+(?:\{[^}]*\}\s+from\s+)?"([^"]+)"|import\s+(?:\{[^}]*\}\s+from\s+)?'([^']+)'`)
	// pragma solidity ^0.8.0;
	pragmaRe = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
)

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// stripCommentsAndStrings blanks out // line comments and /* */ block
// comments (byte offsets are preserved by replacing with spaces), so a
// commented-out import or pragma is never extracted. It scans past string
// literals without blanking them, since an import directive's own path is
// itself a string literal the caller's regexes still need to see; instead
// it returns a per-byte mask marking which offsets lie inside a string
// literal (quotes included). The quote tracking also keeps a "//" or "/*"
// inside a string from being mistaken for the start of a comment.
func stripCommentsAndStrings(s string) (string, []bool) {
	out := make([]byte, len(s))
	copy(out, s)
	inString := make([]bool, len(s))
	n := len(s)
	i := 0
	for i < n {
		switch {
		case i+1 < n && s[i] == '/' && s[i+1] == '/':
			for i < n && s[i] != '\n' {
				out[i] = ' '
				i++
			}
		case i+1 < n && s[i] == '/' && s[i+1] == '*':
			blank(out, i, 2)
			i += 2
			for i+1 < n && !(s[i] == '*' && s[i+1] == '/') {
				if s[i] != '\n' {
					out[i] = ' '
				}
				i++
			}
			if i+1 < n {
				blank(out, i, 2)
				i += 2
			}
		case s[i] == '"' || s[i] == '\'':
			quote := s[i]
			start := i
			i++
			for i < n && s[i] != quote {
				if s[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
			for j := start; j < i && j < n; j++ {
				inString[j] = true
			}
		default:
			i++
		}
	}
	return string(out), inString
}

func blank(b []byte, from, count int) {
	for j := from; j < from+count && j < len(b); j++ {
		if b[j] != '\n' {
			b[j] = ' '
		}
	}
}
