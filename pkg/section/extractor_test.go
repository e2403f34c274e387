package section

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = `## Code Output
tests passed: 12
tests failed: 0

## Code Error
(none)

## Mitmproxy Log (HTTP/HTTPS flows)
GET https://example.com/api

## Tcpdump Log (All network traffic)
12:00:01 IP a > b
`

func TestExtract_MiddleSection(t *testing.T) {
	got := Extract(sample, TitleCodeOutput)
	assert.Equal(t, "tests passed: 12\ntests failed: 0", got)
}

func TestExtract_LastSection(t *testing.T) {
	got := Extract(sample, TitleTcpdumpLog)
	assert.Equal(t, "12:00:01 IP a > b", got)
}

func TestExtract_MissingSectionReturnsEmpty(t *testing.T) {
	got := Extract(sample, "Network Difference (Initial vs Final)")
	assert.Equal(t, "", got)
}

func TestExtract_TitleWithRegexMetacharacters(t *testing.T) {
	text := "## Network Difference (Initial vs Final)\nno changes\n"
	assert.Equal(t, "no changes", Extract(text, TitleNetworkDifference))
}

func TestIsUsefulMitmproxy(t *testing.T) {
	assert.False(t, IsUsefulMitmproxy("one\ntwo"))
	assert.True(t, IsUsefulMitmproxy(strings.Repeat("line\n", 5)))
}

func TestIsUsefulTcpdump(t *testing.T) {
	assert.False(t, IsUsefulTcpdump(strings.Repeat("line\n", 5)))
	assert.True(t, IsUsefulTcpdump(strings.Repeat("line\n", 11)))
}
