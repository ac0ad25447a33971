package lvm2

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Anthya1104/volrecon/internal/verr"
)

// parseConfigTree parses LVM2's textual metadata grammar: nested
// `name {  key = value  }` blocks, line comments introduced by '#',
// and values that are quoted strings, integers, or bracketed lists
// (which may span multiple lines).
func parseConfigTree(text string) (map[string]any, error) {
	lines := stripComments(text)
	root := map[string]any{}
	idx := 0
	if err := parseBlockBody(lines, &idx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// stripComments removes from the first unquoted '#' to the end of
// each line and drops now-empty lines.
func stripComments(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		inQuotes := false
		cut := -1
		for i, c := range line {
			switch c {
			case '"':
				inQuotes = !inQuotes
			case '#':
				if !inQuotes {
					cut = i
				}
			}
			if cut >= 0 {
				break
			}
		}
		if cut >= 0 {
			line = line[:cut]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// parseBlockBody consumes lines[*idx:] until a bare "}" closes the
// current block (or input is exhausted, for the root), populating
// dst with each key/value pair and nested block it finds.
func parseBlockBody(lines []string, idx *int, dst map[string]any) error {
	for *idx < len(lines) {
		line := lines[*idx]

		if line == "}" {
			*idx++
			return nil
		}

		if strings.HasSuffix(line, "{") {
			name := strings.TrimSpace(strings.TrimSuffix(line, "{"))
			*idx++
			child := map[string]any{}
			if err := parseBlockBody(lines, idx, child); err != nil {
				return err
			}
			dst[name] = child
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			return fmt.Errorf("malformed metadata line %q: %w", line, verr.ErrBadStructure)
		}
		key := strings.TrimSpace(line[:eq])
		rawValue := strings.TrimSpace(line[eq+1:])

		value, consumed, err := parseValue(rawValue, lines, *idx)
		if err != nil {
			return fmt.Errorf("parsing value for %q: %w", key, err)
		}
		dst[key] = value
		*idx = consumed
	}
	return nil
}

// parseValue parses the value starting on lines[at] (rawValue is that
// line's text after "key ="), returning the parsed value and the next
// line index to resume from. A bracketed list may continue across
// following lines, matching the reference grammar.
func parseValue(rawValue string, lines []string, at int) (any, int, error) {
	if strings.HasPrefix(rawValue, "[") {
		full := rawValue
		end := at
		for !strings.HasSuffix(strings.TrimSpace(full), "]") {
			end++
			if end >= len(lines) {
				return nil, 0, fmt.Errorf("unterminated list: %w", verr.ErrBadStructure)
			}
			full += " " + lines[end]
		}
		list, err := parseList(full)
		return list, end + 1, err
	}

	v, err := parseScalar(rawValue)
	return v, at + 1, err
}

func parseList(s string) ([]any, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var out []any
	for _, part := range splitTopLevelCommas(s) {
		v, err := parseScalar(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// splitTopLevelCommas splits on commas that aren't inside a quoted
// string.
func splitTopLevelCommas(s string) []string {
	var parts []string
	var cur strings.Builder
	inQuotes := false
	for _, c := range s {
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteRune(c)
		case c == ',' && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

func parseScalar(s string) (any, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") && len(s) >= 2 {
		return s[1 : len(s)-1], nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return s, nil
}
