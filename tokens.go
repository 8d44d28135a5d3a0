package main

import (
	"fmt"
	"strconv"
	"strings"
)

// renderTokenBadge shows the mirrored AI token budget. The counter is
// server-authoritative; this is display only.
func renderTokenBadge(s styles, remaining, limit int) string {
	if limit <= 0 {
		return ""
	}
	text := fmt.Sprintf("AI tokens %s/%s", formatIntComma(remaining), formatIntComma(limit))
	if remaining <= 0 {
		return s.errorText.Render(text + " (daily limit reached)")
	}
	return s.topBadge.Render(text)
}

func formatIntComma(value int) string {
	text := strconv.Itoa(value)
	n := len(text)
	if n <= 3 {
		return text
	}
	var parts []string
	for n > 3 {
		parts = append([]string{text[n-3:]}, parts...)
		text = text[:n-3]
		n = len(text)
	}
	parts = append([]string{text}, parts...)
	return strings.Join(parts, ",")
}
