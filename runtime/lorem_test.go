package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deicod/godtl/lexer"
)

func TestLoremWords(t *testing.T) {
	assert.Equal(t, "lorem ipsum", Lorem(2, lexer.LoremWords, true))
	assert.Equal(t, strings.Join(commonWords, " "), Lorem(len(commonWords), lexer.LoremWords, true))
	assert.Equal(t, strings.Join(commonWords[:len(commonWords)-2], " "), Lorem(-2, lexer.LoremWords, true))
	assert.Equal(t, "", Lorem(-2, lexer.LoremWords, false))

	long := strings.Fields(Lorem(len(commonWords)+5, lexer.LoremWords, true))
	assert.Len(t, long, len(commonWords)+5)
	assert.Equal(t, commonWords, long[:len(commonWords)])

	for _, word := range strings.Fields(Lorem(100, lexer.LoremWords, false)) {
		assert.Contains(t, loremWords, word)
	}
}

func TestLoremParagraphs(t *testing.T) {
	assert.Equal(t, "", Lorem(0, lexer.LoremBlocks, true))
	assert.Equal(t, commonParagraph, Lorem(1, lexer.LoremBlocks, true))

	blocks := strings.Split(Lorem(3, lexer.LoremBlocks, false), "\n\n")
	assert.Len(t, blocks, 3)
	for _, block := range blocks {
		assert.NotEqual(t, commonParagraph, block)
		assert.True(t, strings.HasSuffix(block, ".") || strings.HasSuffix(block, "?"), block)
		assert.Equal(t, strings.ToUpper(block[:1]), block[:1])
	}

	html := Lorem(2, lexer.LoremParagraphs, true)
	assert.True(t, strings.HasPrefix(html, "<p>"+commonParagraph+"</p>\n\n<p>"))
	assert.True(t, strings.HasSuffix(html, "</p>"))
}
