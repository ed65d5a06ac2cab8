package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/kitbuilder587/abn-search/internal/view"
)

const (
	MaxMessageLength = 4096 // лимит телеграма
	retryHint        = "Send /retry to try again."
)

// FormatPage - одно состояние поиска в HTML разметке телеграма.
func FormatPage(p view.Page) string {
	switch {
	case p.IsError():
		var sb strings.Builder
		sb.WriteString("<b>" + view.ErrorTitle + "</b>\n")
		sb.WriteString(html.EscapeString(p.ErrorMessage))
		if p.CanRetry {
			sb.WriteString("\n\n" + retryHint)
		}
		return sb.String()
	case p.IsEmpty():
		return "<b>" + view.EmptyTitle + "</b>\n" + view.EmptyMessage
	case p.HasResults():
		var sb strings.Builder
		sb.WriteString("<b>" + html.EscapeString(p.Summary) + "</b>")
		for _, c := range p.Cards {
			sb.WriteString("\n\n")
			sb.WriteString(FormatCard(c))
		}
		return sb.String()
	case p.IsLoading():
		return view.LoadingMessage
	default:
		return ""
	}
}

func FormatCard(c view.Card) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(c.Name)))
	sb.WriteString(fmt.Sprintf("ABN <code>%s</code> %s %s",
		html.EscapeString(c.ABN),
		statusIcon(c.Active),
		html.EscapeString(c.Status),
	))

	lines := []string{c.EntityType}
	if c.Registered != "" {
		lines = append(lines, "Registered: "+c.Registered)
	}
	lines = append(lines, c.Location, c.GSTLine)

	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(html.EscapeString(l))
	}
	return sb.String()
}

func statusIcon(active bool) string {
	if active {
		return "●"
	}
	return "○"
}

// SplitMessage режет длинный ответ на куски не длиннее maxLen,
// стараясь резать по пустой строке между карточками.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var messages []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			messages = append(messages, text)
			break
		}

		splitPoint := findSafeSplitPoint(text, maxLen)
		if splitPoint <= 0 || splitPoint > len(text) {
			splitPoint = maxLen
		}

		messages = append(messages, strings.TrimRight(text[:splitPoint], "\n"))
		text = strings.TrimLeft(text[splitPoint:], "\n")
	}

	return messages
}

func findSafeSplitPoint(text string, maxLen int) int {
	// граница карточек
	if i := strings.LastIndex(text[:maxLen], "\n\n"); i > maxLen/2 {
		return i + 2
	}

	// пробел или перевод строки, не ломая HTML-теги
	for i := maxLen - 1; i > maxLen/2; i-- {
		if isInsideHTMLTag(text, i) {
			continue
		}
		if text[i] == '\n' || text[i] == ' ' {
			return i + 1
		}
	}

	for i := maxLen - 1; i > 0; i-- {
		if text[i] == ' ' || text[i] == '\n' {
			return i + 1
		}
	}

	return maxLen
}

func isInsideHTMLTag(text string, pos int) bool {
	if pos >= len(text) || pos < 0 {
		return false
	}
	for i := pos; i >= 0; i-- {
		if text[i] == '>' {
			return false
		}
		if text[i] == '<' {
			return true
		}
	}
	return false
}
