package runtime

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deicod/godtl/lexer"
)

const commonParagraph = "Lorem ipsum dolor sit amet, consectetur adipisicing elit, sed do eiusmod " +
	"tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud " +
	"exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in " +
	"reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. Excepteur sint " +
	"occaecat cupidatat non proident, sunt in culpa qui officia deserunt mollit anim id est laborum."

var loremWords = strings.Fields(`
	exercitationem perferendis perspiciatis laborum eveniet sunt iure name nobis eum cum officiis
	excepturi odio consectetur quasi aut quisquam vel eligendi itaque non odit tempore quaerat
	dignissimos facilis neque nihil expedita vitae vero ipsum nisi animi cumque pariatur velit modi
	natus iusto eaque sequi illo sed ex et voluptatibus tempora veritatis ratione assumenda incidunt
	nostrum placeat aliquid fuga provident praesentium rem necessitatibus suscipit adipisci quidem
	possimus voluptas debitis sint accusantium unde sapiente voluptate qui aspernatur laudantium
	soluta amet quo aliquam saepe culpa libero ipsa dicta reiciendis nesciunt doloribus autem impedit
	minima maiores repudiandae ipsam obcaecati ullam enim totam delectus ducimus quis voluptates
	dolores molestiae harum dolorem quia voluptatem molestias magni distinctio omnis illum dolorum
	voluptatum ea quas quam corporis quae blanditiis atque deserunt laboriosam earum consequuntur hic
	cupiditate quibusdam accusamus ut rerum error minus eius ab ad nemo fugit officia at in id quos
	reprehenderit numquam iste fugiat sit inventore beatae repellendus magnam recusandae quod
	explicabo doloremque aperiam consequatur asperiores commodi option dolor labore temporibus
	repellat veniam architecto est esse mollitia nulla a similique eos alias dolore tenetur deleniti
	porro facere maxime corrupti`)

var commonWords = strings.Fields(
	"lorem ipsum dolor sit amet consectetur adipisicing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua")

// sampleWords picks n distinct random words
func sampleWords(n int) []string {
	picked := make([]string, 0, n)
	for _, i := range rand.Perm(len(loremWords))[:n] {
		picked = append(picked, loremWords[i])
	}
	return picked
}

// loremSentence is one to five comma separated sections of three to twelve
// words, capitalised and ending in a period or question mark.
func loremSentence() string {
	sections := make([]string, 1+rand.IntN(5))
	for i := range sections {
		sections[i] = strings.Join(sampleWords(3+rand.IntN(10)), " ")
	}
	sentence := strings.Join(sections, ", ")

	first, size := utf8.DecodeRuneInString(sentence)
	sentence = string(unicode.ToUpper(first)) + sentence[size:]
	if rand.IntN(2) == 0 {
		return sentence + "?"
	}
	return sentence + "."
}

func loremParagraph() string {
	sentences := make([]string, 1+rand.IntN(4))
	for i := range sentences {
		sentences[i] = loremSentence()
	}
	return strings.Join(sentences, " ")
}

func loremParagraphs(count int, common bool) []string {
	paragraphs := make([]string, count)
	for i := range paragraphs {
		if common && i == 0 {
			paragraphs[i] = commonParagraph
		} else {
			paragraphs[i] = loremParagraph()
		}
	}
	return paragraphs
}

// loremWordList returns count words. Common text starts with the classic
// lorem ipsum words.
func loremWordList(count int, common bool) string {
	if common && count <= len(commonWords) {
		return strings.Join(commonWords[:count], " ")
	}
	var words []string
	if common {
		words = append(words, commonWords...)
		count -= len(commonWords)
	}
	for count > 0 {
		take := min(count, len(loremWords))
		words = append(words, sampleWords(take)...)
		count -= take
	}
	return strings.Join(words, " ")
}

// Lorem generates the placeholder text of a lorem tag
func Lorem(count int, method lexer.LoremMethod, common bool) string {
	if method == lexer.LoremWords {
		switch {
		case count < 0 && common:
			count = max(len(commonWords)+count, 0)
		case count < 0:
			count = 0
		}
		return loremWordList(count, common)
	}

	if count <= 0 {
		return ""
	}
	paragraphs := loremParagraphs(count, common)
	if method == lexer.LoremParagraphs {
		for i, p := range paragraphs {
			paragraphs[i] = "<p>" + p + "</p>"
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
