package podcast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:04,500
Welcome back to the show. Today we have

2
00:00:04,500 --> 00:00:09,120
a fascinating guest. Let's get started.

3
00:00:09,120 --> 00:00:14,000
First question. Second point. Third thing. Fourth remark. Fifth idea. Sixth thought.
`

func TestIsSRT(t *testing.T) {
	assert.True(t, IsSRT(sampleSRT))
	assert.True(t, IsSRT("00:01:02.345 --> 00:01:05.678\nhello"))
	assert.True(t, IsSRT("00:01:02:345 --> 00:01:05:678\nhello"))
	assert.False(t, IsSRT("Just a plain transcript with no timestamps."))
	assert.False(t, IsSRT(""))
}

func TestCleanSRTStripsStructure(t *testing.T) {
	cleaned := CleanSRT(sampleSRT)
	assert.NotContains(t, cleaned, "-->")
	assert.NotContains(t, cleaned, "00:00:00")
	assert.NotRegexp(t, `(?m)^\d+$`, cleaned)
	assert.Contains(t, cleaned, "Welcome back to the show.")
	assert.Contains(t, cleaned, "a fascinating guest.")
}

func TestCleanSRTParagraphBreaks(t *testing.T) {
	cleaned := CleanSRT(sampleSRT)
	// 9 sentences total: a break lands after the fifth
	assert.Contains(t, cleaned, "\n\n")
	paragraphs := strings.Split(cleaned, "\n\n")
	assert.Len(t, paragraphs, 2)
}

func TestParagraphizeShortTextUnchanged(t *testing.T) {
	text := "One sentence. Two sentences."
	assert.Equal(t, text, paragraphize(text))
}
