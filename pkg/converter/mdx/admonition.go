package mdx

import (
	"regexp"
	"strings"
)

// admonitionPattern matches :::note, :::tip and :::info blocks. The opening
// marker must start a line and the closing ::: must be alone on its line.
// Nested blocks of the same kind close at the first closing marker.
var admonitionPattern = regexp.MustCompile(`(?ms)^:::(?i:(note|tip|info))\b([^\n]*)\n(.*?)^:::[ \t]*$`)

type calloutStyle struct {
	icon  string
	theme string
	label string
}

var calloutStyles = map[string]calloutStyle{
	"note": {icon: "📝", theme: "default"},
	"tip":  {icon: "👍", theme: "okay", label: "Tip"},
	"info": {icon: "📘", theme: "info", label: "Info"},
}

const calloutPad = "  "

// ConvertAdmonitions rewrites admonition blocks into ReadMe callouts. Text
// after the kind keyword on the opening line replaces the default label.
// Unmatched markers are left as they are.
func ConvertAdmonitions(src string) string {
	return admonitionPattern.ReplaceAllStringFunc(src, func(block string) string {
		m := admonitionPattern.FindStringSubmatch(block)
		style := calloutStyles[strings.ToLower(m[1])]
		label := style.label
		if custom := strings.TrimSpace(m[2]); custom != "" {
			label = custom
		}

		var sb strings.Builder
		sb.WriteString(`<Callout icon="` + style.icon + `" theme="` + style.theme + `">` + "\n")
		if label != "" {
			sb.WriteString(calloutPad + "**" + label + "**\n\n")
		}
		if body := strings.TrimRight(m[3], "\n"); body != "" {
			for _, line := range strings.Split(body, "\n") {
				if strings.TrimSpace(line) != "" {
					sb.WriteString(calloutPad + line)
				}
				sb.WriteString("\n")
			}
		}
		sb.WriteString("</Callout>")
		return sb.String()
	})
}
