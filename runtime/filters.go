package runtime

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/deicod/godtl/nodes"
)

// builtinFilters implements the filters the parser recognises by name.
// Filters taking an optional argument receive it as args[0] when given.
var builtinFilters = map[nodes.FilterKind]FilterFunc{
	nodes.FilterAdd:           filterAdd,
	nodes.FilterAddSlashes:    filterAddSlashes,
	nodes.FilterCapfirst:      filterCapfirst,
	nodes.FilterCenter:        filterCenter,
	nodes.FilterCut:           filterCut,
	nodes.FilterDate:          filterDate,
	nodes.FilterDefault:       filterDefault,
	nodes.FilterDefaultIfNone: filterDefaultIfNone,
	nodes.FilterEscape:        filterEscape,
	nodes.FilterEscapejs:      filterEscapejs,
	nodes.FilterLength:        filterLength,
	nodes.FilterLower:         filterLower,
	nodes.FilterSafe:          filterSafe,
	nodes.FilterSlugify:       filterSlugify,
	nodes.FilterTitle:         filterTitle,
	nodes.FilterUpper:         filterUpper,
	nodes.FilterWordcount:     filterWordcount,
	nodes.FilterWordwrap:      filterWordwrap,
	nodes.FilterYesno:         filterYesno,
}

var (
	nonWordRE    = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRE = regexp.MustCompile(`[-\s]+`)

	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
)

// keepSafety returns s as a string with the same safety as value
func keepSafety(value Value, s string) Value {
	if value.IsSafe() {
		return NewSafeString(s)
	}
	return NewString(s)
}

func argument(args []Value) (Value, bool) {
	if len(args) == 0 {
		return None(), false
	}
	return args[0], true
}

func requireArgument(name string, args []Value) (Value, error) {
	arg, ok := argument(args)
	if !ok {
		return None(), fmt.Errorf("%s requires an argument", name)
	}
	return arg, nil
}

// intArgument converts a filter argument the way int() does
func intArgument(arg Value) (*big.Int, error) {
	n, ok := arg.asInt()
	if !ok {
		return nil, fmt.Errorf("invalid literal for int() with base 10: %s", repr(arg))
	}
	return n, nil
}

func filterAdd(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("add", args)
	if err != nil || value.IsNone() {
		return None(), err
	}

	if left, ok := value.asInt(); ok {
		if right, ok := arg.asInt(); ok {
			return NewInt(new(big.Int).Add(left, right)), nil
		}
	}
	if adder, ok := value.Host().(Adder); ok {
		if sum, err := adder.Add(arg); err == nil {
			return sum, nil
		}
	}
	if value.Kind() == KindString && arg.Kind() == KindString {
		return NewString(value.String() + arg.String()), nil
	}
	return None(), nil
}

var slashEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`)

func filterAddSlashes(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	s := slashEscaper.Replace(value.String())
	return keepSafety(value, s), nil
}

func filterCapfirst(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	s := value.String()
	first, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return keepSafety(value, ""), nil
	}
	return keepSafety(value, upperCaser.String(string(first))+s[size:]), nil
}

func filterCenter(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("center", args)
	if err != nil {
		return None(), err
	}
	if value.IsNone() {
		return NewString(""), nil
	}
	size, err := intArgument(arg)
	if err != nil {
		return None(), err
	}

	s := value.String()
	length := utf8.RuneCountInString(s)
	switch {
	case !size.IsInt64() && size.Sign() > 0:
		return None(), fmt.Errorf("width %s is too large", size)
	case !size.IsInt64() || size.Int64() <= int64(length):
		return keepSafety(value, s), nil
	}

	width := int(size.Int64())
	padding := width - length
	right := padding / 2
	if width%2 == 0 && length%2 != 0 {
		right = (padding + 1) / 2
	}
	left := padding - right
	return keepSafety(value, strings.Repeat(" ", left)+s+strings.Repeat(" ", right)), nil
}

func filterCut(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("cut", args)
	if err != nil {
		return None(), err
	}
	if value.IsNone() {
		return NewString(""), nil
	}
	remove := arg.String()
	s := strings.ReplaceAll(value.String(), remove, "")
	if value.IsSafe() && remove != ";" {
		return NewSafeString(s), nil
	}
	return NewString(s), nil
}

// defaultDateFormat is Django's DATE_FORMAT setting
const defaultDateFormat = "N j, Y"

func filterDate(ctx *Context, value Value, args ...Value) (Value, error) {
	t, ok := asTime(value)
	if !ok {
		return NewString(""), nil
	}
	format := defaultDateFormat
	if arg, ok := argument(args); ok {
		format = arg.String()
	}
	return NewString(FormatDate(t, format)), nil
}

// asTime extracts a time.Time from a host value
func asTime(value Value) (time.Time, bool) {
	unwrapper, ok := value.Host().(Unwrapper)
	if !ok {
		return time.Time{}, false
	}
	switch t := unwrapper.Unwrap().(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func filterDefault(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("default", args)
	if err != nil {
		return None(), err
	}
	if value.Truth() {
		return value, nil
	}
	return arg, nil
}

func filterDefaultIfNone(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("default_if_none", args)
	if err != nil {
		return None(), err
	}
	if value.IsNone() {
		return arg, nil
	}
	return value, nil
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// Escape HTML-escapes s with the same replacements as Django's escape
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

func filterEscape(ctx *Context, value Value, args ...Value) (Value, error) {
	switch {
	case value.IsSafe():
		return value, nil
	case value.IsNone():
		return NewSafeString(""), nil
	case value.Kind() == KindString || value.Kind() == KindHost:
		return NewSafeString(Escape(value.String())), nil
	}
	return NewSafeString(value.String()), nil
}

// escapeJS hex encodes the characters that are unsafe inside JavaScript strings
func escapeJS(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case strings.ContainsRune("\\'\"><&=-;`", r), r == '\u2028', r == '\u2029', r < 0x20:
			fmt.Fprintf(&b, `\u%04X`, r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func filterEscapejs(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	return keepSafety(value, escapeJS(value.String())), nil
}

func filterLength(ctx *Context, value Value, args ...Value) (Value, error) {
	switch value.Kind() {
	case KindString:
		return NewInt64(int64(utf8.RuneCountInString(value.String()))), nil
	case KindHost:
		if lengther, ok := value.Host().(Lengther); ok {
			if n, err := lengther.Len(); err == nil {
				return NewInt64(int64(n)), nil
			}
			return NewInt64(0), nil
		}
		if items, err := value.Host().Iterate(); err == nil {
			return NewInt64(int64(len(items))), nil
		}
	}
	return NewInt64(0), nil
}

func filterLower(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	return keepSafety(value, lowerCaser.String(value.String())), nil
}

func filterSafe(ctx *Context, value Value, args ...Value) (Value, error) {
	return NewSafeString(value.String()), nil
}

// Slugify converts s to ASCII, lowercases it, drops everything but word
// characters, spaces and hyphens, and joins the words with hyphens. Leading
// and trailing hyphens and underscores are stripped.
func Slugify(s string) string {
	ascii := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	s, _, err := transform.String(ascii, s)
	if err != nil {
		return ""
	}
	s = nonWordRE.ReplaceAllString(strings.ToLower(s), "")
	return strings.Trim(whitespaceRE.ReplaceAllString(s, "-"), "-_")
}

func filterSlugify(ctx *Context, value Value, args ...Value) (Value, error) {
	switch value.Kind() {
	case KindNone:
		return NewString(""), nil
	case KindInt, KindFloat:
		return NewString(value.String()), nil
	case KindBool:
		return NewString(strings.ToLower(value.String())), nil
	}
	return keepSafety(value, Slugify(value.String())), nil
}

// titleCase uppercases the first letter of each word. A letter after another
// letter or a digit, or after an apostrophe that follows a lowercased letter,
// is lowercased.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	hasPrev := false
	prevLowered := false

	for _, r := range s {
		if unicode.IsLetter(r) {
			lower := false
			if hasPrev {
				switch {
				case prev == '\'':
					lower = prevLowered
				case unicode.IsLetter(prev) || ('0' <= prev && prev <= '9'):
					lower = true
				}
			}
			if lower {
				b.WriteString(lowerCaser.String(string(r)))
			} else {
				b.WriteString(upperCaser.String(string(r)))
			}
			prevLowered = lower
		} else {
			b.WriteRune(r)
		}
		prev, hasPrev = r, true
	}
	return b.String()
}

func filterTitle(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	return keepSafety(value, titleCase(value.String())), nil
}

func filterUpper(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewString(""), nil
	}
	return NewString(upperCaser.String(value.String())), nil
}

func filterWordcount(ctx *Context, value Value, args ...Value) (Value, error) {
	if value.IsNone() {
		return NewInt64(0), nil
	}
	return NewInt64(int64(len(strings.Fields(value.String())))), nil
}

// wordwrap wraps text at width, keeping existing line breaks and indentation.
// Words longer than width are not split.
func wordwrap(text string, width int) string {
	var b strings.Builder
	b.Grow(len(text))

	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line == "" {
			continue
		}

		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		indent := line[:len(line)-len(trimmed)]
		words := strings.Fields(trimmed)
		if len(words) == 0 {
			b.WriteString(line)
			continue
		}

		b.WriteString(indent)
		b.WriteString(words[0])
		current := utf8.RuneCountInString(indent) + utf8.RuneCountInString(words[0])
		for _, word := range words[1:] {
			n := utf8.RuneCountInString(word)
			if current+n < width {
				b.WriteByte(' ')
				current += 1 + n
			} else {
				b.WriteByte('\n')
				current = n
			}
			b.WriteString(word)
		}
	}
	return b.String()
}

func filterWordwrap(ctx *Context, value Value, args ...Value) (Value, error) {
	arg, err := requireArgument("wordwrap", args)
	if err != nil {
		return None(), err
	}
	if value.IsNone() {
		return NewString(""), nil
	}
	n, err := intArgument(arg)
	if err != nil {
		return None(), err
	}
	if n.Sign() <= 0 {
		return None(), fmt.Errorf("invalid width %s (must be > 0)", n)
	}
	width := math.MaxInt
	if n.IsInt64() && n.Int64() < int64(math.MaxInt) {
		width = int(n.Int64())
	}
	return keepSafety(value, wordwrap(value.String(), width)), nil
}

func filterYesno(ctx *Context, value Value, args ...Value) (Value, error) {
	var mapping string
	if arg, ok := argument(args); ok {
		mapping = arg.String()
	} else {
		mapping = ctx.translate("yes,no,maybe")
	}

	bits := strings.Split(mapping, ",")
	if len(bits) < 2 {
		return value, nil
	}
	yes, no, maybe := bits[0], bits[1], bits[1]
	if len(bits) > 2 {
		maybe = bits[2]
	}

	switch {
	case value.IsNone():
		return NewString(maybe), nil
	case value.Truth():
		return NewString(yes), nil
	}
	return NewString(no), nil
}
