package report

import (
	"fmt"
	"html"
	"strings"

	"agentic_dcf/pkg/core/utils"
)

const pageStyle = `body{font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;max-width:1100px;margin:2rem auto;padding:0 1rem;color:#1f2328}
table{border-collapse:collapse;margin:1rem 0;font-size:.9rem}
th,td{border:1px solid #d0d7de;padding:.3rem .6rem;text-align:right}
th:first-child,td:first-child{text-align:left}
h1{border-bottom:1px solid #d0d7de;padding-bottom:.3rem}`

// RenderHTML converts report Markdown into a standalone HTML page. The title is
// taken from the first level-one heading.
func RenderHTML(md string) (string, error) {
	body, err := utils.MarkdownToHTML(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	title := "Valuation"
	for _, line := range strings.Split(md, "\n") {
		if t, ok := strings.CutPrefix(line, "# "); ok {
			title = strings.TrimSpace(t)
			break
		}
	}
	return fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), pageStyle, body), nil
}
