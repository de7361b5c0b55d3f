package compiler

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/wehubfusion/Daedalus/pkg/module"
)

// ResultOutput is the generic output every script exposes for its evaluation result.
const ResultOutput = "result"

var paramPrefixes = []string{"//@", "#@"}

// ParseParameters reads the parameter declarations of a script. A declaration
// is a comment line of the form
//
//	#@ [input|output] Type[(key=value, ...)] name
//
// with "//@" accepted in place of "#@". Lines whose first token is neither
// input, output nor a type name are other tools' comments (//@ts-check) and
// are skipped. Recognized attributes are value (the
// default), required and label. Inputs are required unless they carry a
// default or required=false. The generic result output is appended unless the
// script declares an output with that name.
func ParseParameters(name, source string) (*module.Info, error) {
	info := &module.Info{Name: name}

	scanner := bufio.NewScanner(strings.NewReader(source))
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		decl, ok := cutParamPrefix(text)
		if !ok || !isDeclaration(decl) {
			continue
		}
		item, err := parseDeclaration(decl)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := info.Add(item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if _, ok := info.Output(ResultOutput); !ok {
		_ = info.Add(module.Item{Name: ResultOutput, Type: module.TypeUnspecified, Direction: module.Output})
	}
	return info, nil
}

func cutParamPrefix(line string) (string, bool) {
	for _, p := range paramPrefixes {
		if rest, ok := strings.CutPrefix(line, p); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func parseDeclaration(decl string) (module.Item, error) {
	item := module.Item{Direction: module.Input}

	switch {
	case hasKeyword(decl, "output"):
		item.Direction = module.Output
		decl = strings.TrimSpace(decl[len("output"):])
	case hasKeyword(decl, "input"):
		decl = strings.TrimSpace(decl[len("input"):])
	}

	typeName, attrs, name, err := splitDeclaration(decl)
	if err != nil {
		return item, err
	}

	t, err := module.ParseItemType(typeName)
	if err != nil {
		return item, err
	}
	item.Type = t
	item.Name = name
	item.Required = item.Direction == module.Input

	requiredSet := false
	for key, raw := range attrs {
		switch key {
		case "value":
			v, err := module.ParseValue(raw, t)
			if err != nil {
				return item, fmt.Errorf("default of %s: %w", name, err)
			}
			item.Default = v
		case "required":
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return item, fmt.Errorf("required of %s: %w", name, err)
			}
			item.Required = b
			requiredSet = true
		case "label":
			item.Label = raw
		default:
			return item, fmt.Errorf("unknown attribute %q on %s", key, name)
		}
	}
	if item.Default != nil && !requiredSet {
		item.Required = false
	}
	if item.Direction == module.Output {
		item.Required = false
	}
	return item, nil
}

func isDeclaration(decl string) bool {
	if hasKeyword(decl, "input") || hasKeyword(decl, "output") {
		return true
	}
	token := decl
	if i := strings.IndexAny(decl, "( \t"); i >= 0 {
		token = decl[:i]
	}
	if token == "" {
		return false
	}
	_, err := module.ParseItemType(token)
	return err == nil
}

func hasKeyword(decl, kw string) bool {
	if !strings.HasPrefix(decl, kw) || len(decl) == len(kw) {
		return false
	}
	next := decl[len(kw)]
	return next == ' ' || next == '\t'
}

// splitDeclaration splits "Type(attrs) name" into its parts.
func splitDeclaration(decl string) (string, map[string]string, string, error) {
	attrs := map[string]string{}

	var typeName, rest string
	if open := strings.IndexByte(decl, '('); open >= 0 && !strings.ContainsAny(decl[:open], " \t") {
		closing := strings.LastIndexByte(decl, ')')
		if closing < open {
			return "", nil, "", fmt.Errorf("unterminated attribute list in %q", decl)
		}
		typeName = decl[:open]
		parsed, err := parseAttributes(decl[open+1 : closing])
		if err != nil {
			return "", nil, "", err
		}
		attrs = parsed
		rest = decl[closing+1:]
	} else {
		fields := strings.Fields(decl)
		if len(fields) == 0 {
			return "", nil, "", fmt.Errorf("empty parameter declaration")
		}
		typeName = fields[0]
		rest = strings.TrimPrefix(decl, fields[0])
	}

	fields := strings.Fields(rest)
	if len(fields) != 1 {
		return "", nil, "", fmt.Errorf("expected exactly one parameter name in %q", decl)
	}
	return typeName, attrs, fields[0], nil
}

func parseAttributes(s string) (map[string]string, error) {
	attrs := map[string]string{}
	for _, part := range splitOutsideQuotes(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q is not key=value", part)
		}
		value = strings.TrimSpace(value)
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		}
		attrs[strings.TrimSpace(key)] = value
	}
	return attrs, nil
}

func splitOutsideQuotes(s string, sep rune) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuotes:
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == sep && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
			continue
		}
		b.WriteRune(r)
	}
	return append(parts, b.String())
}
