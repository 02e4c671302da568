package runtime

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Translator translates the strings marked with _("...") in templates and
// the default labels of filters such as yesno.
type Translator interface {
	Translate(msgid string) string
}

// TranslatorFunc adapts a function to Translator
type TranslatorFunc func(msgid string) string

func (f TranslatorFunc) Translate(msgid string) string { return f(msgid) }

// CatalogTranslator translates from an x/text message catalog for one language
type CatalogTranslator struct {
	lang    language.Tag
	known   map[string]bool
	printer *message.Printer
}

// NewCatalogTranslator builds a translator for lang from msgid to translation
// pairs. Unknown msgids translate to themselves.
func NewCatalogTranslator(lang language.Tag, messages map[string]string) (*CatalogTranslator, error) {
	builder := catalog.NewBuilder(catalog.Fallback(lang))
	known := make(map[string]bool, len(messages))
	for msgid, translation := range messages {
		// catalog messages are format strings
		if err := builder.SetString(lang, msgid, strings.ReplaceAll(translation, "%", "%%")); err != nil {
			return nil, err
		}
		known[msgid] = true
	}
	return &CatalogTranslator{
		lang:    lang,
		known:   known,
		printer: message.NewPrinter(lang, message.Catalog(builder)),
	}, nil
}

// Language returns the catalog language
func (t *CatalogTranslator) Language() language.Tag {
	return t.lang
}

func (t *CatalogTranslator) Translate(msgid string) string {
	if !t.known[msgid] {
		return msgid
	}
	return t.printer.Sprintf(msgid)
}
