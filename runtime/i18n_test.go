package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestCatalogTranslator(t *testing.T) {
	translator, err := NewCatalogTranslator(language.German, map[string]string{
		"Hello":        "Hallo",
		"yes,no,maybe": "ja,nein,vielleicht",
		"100%":         "100 %",
	})
	require.NoError(t, err)

	assert.Equal(t, language.German, translator.Language())
	assert.Equal(t, "Hallo", translator.Translate("Hello"))
	assert.Equal(t, "100 %", translator.Translate("100%"))
	assert.Equal(t, "Unknown", translator.Translate("Unknown"))

	env := NewEnvironment()
	env.SetTranslator(translator)
	assert.Equal(t, "Hallo|nein", renderString(t, env, `{{ _("Hello") }}|{{ flag|yesno }}`, map[string]any{"flag": false}))
}
