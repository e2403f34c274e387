// Package section extracts named Markdown-style sections from container
// output so the review loop can feed them to the LLM individually.
package section

import (
	"fmt"
	"regexp"
	"strings"
)

// Well-known section titles read from container output. The generated
// wrapper script emits only Code Output and Code Error; the others come
// from a repository's own wrapper.
const (
	TitleCodeOutput        = "Code Output"
	TitleCodeError         = "Code Error"
	TitleMitmproxyLog      = "Mitmproxy Log (HTTP/HTTPS flows)"
	TitleTcpdumpLog        = "Tcpdump Log (All network traffic)"
	TitleNetworkDifference = "Network Difference (Initial vs Final)"
)

const (
	// minMitmproxyLines is the line-count threshold below which a
	// mitmproxy section is not worth feeding to the review loop.
	minMitmproxyLines = 4
	// minTcpdumpLines is the equivalent threshold for tcpdump output.
	minTcpdumpLines = 10
)

// Extract returns the trimmed body of the "## <title>" section in text,
// running until the next "## " header or end of input. Returns the empty
// string when no matching section exists.
func Extract(text, title string) string {
	pattern := fmt.Sprintf(`(?s)## %s\s*\n(.*?)(?:\n## |\z)`, regexp.QuoteMeta(title))
	re := regexp.MustCompile(pattern)

	match := re.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// IsUsefulMitmproxy reports whether a mitmproxy section carries enough
// content to be worth sending to the review loop.
func IsUsefulMitmproxy(section string) bool {
	return countLines(section) > minMitmproxyLines
}

// IsUsefulTcpdump reports whether a tcpdump section carries enough content
// to be worth sending to the review loop.
func IsUsefulTcpdump(section string) bool {
	return countLines(section) > minTcpdumpLines
}

func countLines(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return len(strings.Split(s, "\n"))
}
