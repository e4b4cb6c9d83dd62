package protocol

import "strings"

// ParseChunk parses a chunk of the reference simulator's text protocol, one
// line per message. Lines that do not start with '|' are plain text and
// parse to an empty tag so they can be filtered like any other cosmetic line.
func ParseChunk(chunk string) []ParsedLine {
	if chunk == "" {
		return nil
	}
	raw := strings.Split(chunk, "\n")
	lines := make([]ParsedLine, 0, len(raw))
	for _, text := range raw {
		lines = append(lines, ParseLine(text))
	}
	return lines
}

// ParseLine parses a single text protocol line. Trailing arguments of the form
// "[key] value" (or a bare "[key]") become named arguments.
func ParseLine(text string) ParsedLine {
	text = strings.TrimSuffix(text, "\r")
	if !strings.HasPrefix(text, "|") {
		return NewLine("", text)
	}
	args := strings.Split(text[1:], "|")
	kw := map[string]string{}
	for len(args) > 1 {
		key, value, ok := parseKeyword(args[len(args)-1])
		if !ok {
			break
		}
		kw[key] = value
		args = args[:len(args)-1]
	}
	return ParsedLine{Args: args, KWArgs: kw}
}

func parseKeyword(arg string) (string, string, bool) {
	if !strings.HasPrefix(arg, "[") {
		return "", "", false
	}
	end := strings.IndexByte(arg, ']')
	if end <= 1 {
		return "", "", false
	}
	return arg[1:end], strings.TrimSpace(arg[end+1:]), true
}
