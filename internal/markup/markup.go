// Package markup converts the provider's emphasis markup into presentation
// HTML: bold/italic emphasis, bullet lists, and highlighting for order ids,
// payment ids and monetary figures. Pure text transform, no state.
package markup

import (
	"html"
	"regexp"
	"strings"
)

var (
	strongHighlightRe = regexp.MustCompile(`\*\*\*(.*?)\*\*\*`)
	strongRe          = regexp.MustCompile(`\*\*(.*?)\*\*`)
	emRe              = regexp.MustCompile(`\*(.*?)\*`)

	listItemRe = regexp.MustCompile(`^\s*[•\-\*]\s+`)

	orderIDRe   = regexp.MustCompile(`\b(ord\d+)\b`)
	paymentIDRe = regexp.MustCompile(`\b(pay\d+)\b`)
	nairaRe     = regexp.MustCompile(`(₦\d+(?:,\d+)*(?:\.\d+)?)`)
	dollarRe    = regexp.MustCompile(`(\$\d+(?:,\d+)*(?:\.\d+)?)`)

	headerLineRe = regexp.MustCompile(`^(Subject:|Dear\b|Sincerely,|The.*Team)`)
)

// Render converts raw provider text to HTML for the chat frontend.
func Render(text string) string {
	text = strongHighlightRe.ReplaceAllString(text, `<strong class="highlight">$1</strong>`)
	text = strongRe.ReplaceAllString(text, `<strong>$1</strong>`)
	text = emRe.ReplaceAllString(text, `<em>$1</em>`)

	var out strings.Builder
	inList := false

	for _, line := range strings.Split(text, "\n") {
		if listItemRe.MatchString(line) {
			if !inList {
				out.WriteString(`<ul class="list-disc pl-5 space-y-1 my-2">`)
				inList = true
			}
			item := listItemRe.ReplaceAllString(line, "")
			out.WriteString("<li>" + item + "</li>")
			continue
		}

		if inList {
			out.WriteString("</ul>")
			inList = false
		}

		if strings.TrimSpace(line) == "" {
			out.WriteString(`<div class="py-1"></div>`)
			continue
		}

		line = highlightEntities(line)

		if headerLineRe.MatchString(line) {
			out.WriteString(`<div class="font-medium">` + line + "</div>")
		} else {
			out.WriteString("<div>" + line + "</div>")
		}
	}

	if inList {
		out.WriteString("</ul>")
	}
	return out.String()
}

func highlightEntities(line string) string {
	line = orderIDRe.ReplaceAllString(line, `<span class="text-blue-600 font-medium">$1</span>`)
	line = paymentIDRe.ReplaceAllString(line, `<span class="text-blue-600 font-medium">$1</span>`)
	line = nairaRe.ReplaceAllString(line, `<span class="text-green-600 font-medium">$1</span>`)
	line = dollarRe.ReplaceAllString(line, `<span class="text-green-600 font-medium">$1</span>`)
	return line
}

// Plain wraps already-plain text in a div, escaping any HTML. Canned replies
// go through this instead of Render.
func Plain(text string) string {
	return "<div>" + html.EscapeString(text) + "</div>"
}
