package lexer

// LoremMethod selects what the lorem tag generates
type LoremMethod int

const (
	LoremBlocks LoremMethod = iota
	LoremWords
	LoremParagraphs
)

func (m LoremMethod) String() string {
	switch m {
	case LoremWords:
		return "w"
	case LoremParagraphs:
		return "p"
	}
	return "b"
}

// LoremTokenKind classifies one lorem argument
type LoremTokenKind int

const (
	LoremCount LoremTokenKind = iota
	LoremMethodToken
	LoremRandom
)

// LoremToken is one argument of the lorem tag. Method is only meaningful for
// LoremMethodToken.
type LoremToken struct {
	Kind   LoremTokenKind
	At     Span
	Method LoremMethod
}

// LoremErrorKind enumerates lorem argument ordering failures
type LoremErrorKind int

const (
	LoremCountAfterMethod LoremErrorKind = iota
	LoremCountAfterRandom
	LoremMethodAfterRandom
	LoremDuplicateRandom
	LoremDuplicateMethod
	LoremDuplicateCount
)

// LoremError is returned by LoremLexer. First is the earlier argument, Second the
// one that triggered the error.
type LoremError struct {
	Kind   LoremErrorKind
	First  Span
	Second Span
}

func (e *LoremError) Error() string {
	const prefix = "Incorrect format for 'lorem' tag: "
	switch e.Kind {
	case LoremCountAfterMethod:
		return prefix + "'count' must come before the 'method' argument"
	case LoremCountAfterRandom:
		return prefix + "'count' must come before the 'random' argument"
	case LoremMethodAfterRandom:
		return prefix + "'method' must come before the 'random' argument"
	case LoremDuplicateRandom:
		return prefix + "'random' was provided more than once"
	case LoremDuplicateMethod:
		return prefix + "'method' argument was provided more than once"
	default:
		return prefix + "'count' argument was provided more than once"
	}
}

// Help suggests a fix.
func (e *LoremError) Help() string {
	switch e.Kind {
	case LoremCountAfterMethod:
		return "Move the 'count' argument before the 'method' argument"
	case LoremCountAfterRandom:
		return "Move the 'count' argument before the 'random' argument"
	case LoremMethodAfterRandom:
		return "Move the 'method' argument before the 'random' argument"
	case LoremDuplicateRandom:
		return "Try removing the second 'random'"
	case LoremDuplicateMethod:
		return "Try removing the second 'method'"
	default:
		return "Try removing the second 'count'"
	}
}

func (e *LoremError) Labels() []Label {
	switch e.Kind {
	case LoremCountAfterMethod:
		return []Label{label(e.First, "method"), label(e.Second, "count")}
	case LoremCountAfterRandom:
		return []Label{label(e.First, "random"), label(e.Second, "count")}
	case LoremMethodAfterRandom:
		return []Label{label(e.First, "random"), label(e.Second, "method")}
	case LoremDuplicateRandom:
		return []Label{label(e.First, "first 'random'"), label(e.Second, "second 'random'")}
	case LoremDuplicateMethod:
		return []Label{label(e.First, "first 'method'"), label(e.Second, "second 'method'")}
	default:
		return []Label{label(e.First, "first 'count'"), label(e.Second, "second 'count'")}
	}
}

// LoremLexer lexes `lorem [count] [w|p|b] [random]`.
//
// A word that looks like a method or random flag but appears where only the
// count can still go is reinterpreted as the count, so `lorem w w` has the
// count "w".
type LoremLexer struct {
	rest       string
	offset     int
	seenCount  *Span
	seenMethod *Span
	seenRandom *Span
}

func NewLoremLexer(source Source, parts Span) *LoremLexer {
	return &LoremLexer{
		rest:   source.Content(parts),
		offset: parts.Offset,
	}
}

// All lexes every argument. Reinterpreted counts are reflected in the result.
func (l *LoremLexer) All() ([]LoremToken, error) {
	var tokens []*LoremToken
	for l.rest != "" {
		n := nextWhitespace(l.rest)
		at := NewSpan(l.offset, n)
		token := &LoremToken{At: at}
		var err error
		switch l.rest[:n] {
		case "w":
			err = l.method(token, LoremWords, tokens)
		case "p":
			err = l.method(token, LoremParagraphs, tokens)
		case "b":
			err = l.method(token, LoremBlocks, tokens)
		case "random":
			err = l.random(token, tokens)
		default:
			err = l.count(token)
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		l.offset += n
		l.rest = l.rest[n:]
		skip := nextNonWhitespace(l.rest)
		l.offset += skip
		l.rest = l.rest[skip:]
	}
	result := make([]LoremToken, len(tokens))
	for i, token := range tokens {
		result[i] = *token
	}
	return result, nil
}

// demote turns the earlier token at into the count.
func demote(tokens []*LoremToken, at Span) {
	for _, token := range tokens {
		if token.At == at {
			token.Kind = LoremCount
		}
	}
}

func (l *LoremLexer) method(token *LoremToken, method LoremMethod, tokens []*LoremToken) error {
	if l.seenRandom != nil {
		if l.seenCount != nil {
			return &LoremError{Kind: LoremMethodAfterRandom, First: *l.seenRandom, Second: token.At}
		}
		l.seenCount = l.seenRandom
		l.seenRandom = nil
		demote(tokens, *l.seenCount)
	}
	if l.seenMethod != nil {
		if l.seenCount != nil {
			return &LoremError{Kind: LoremDuplicateMethod, First: *l.seenMethod, Second: token.At}
		}
		l.seenCount = l.seenMethod
		demote(tokens, *l.seenCount)
	}
	at := token.At
	l.seenMethod = &at
	token.Kind = LoremMethodToken
	token.Method = method
	return nil
}

func (l *LoremLexer) random(token *LoremToken, tokens []*LoremToken) error {
	if l.seenRandom != nil {
		if l.seenCount != nil {
			return &LoremError{Kind: LoremDuplicateRandom, First: *l.seenRandom, Second: token.At}
		}
		l.seenCount = l.seenRandom
		demote(tokens, *l.seenCount)
	}
	at := token.At
	l.seenRandom = &at
	token.Kind = LoremRandom
	return nil
}

func (l *LoremLexer) count(token *LoremToken) error {
	switch {
	case l.seenCount != nil:
		return &LoremError{Kind: LoremDuplicateCount, First: *l.seenCount, Second: token.At}
	case l.seenMethod != nil:
		return &LoremError{Kind: LoremCountAfterMethod, First: *l.seenMethod, Second: token.At}
	case l.seenRandom != nil:
		return &LoremError{Kind: LoremCountAfterRandom, First: *l.seenRandom, Second: token.At}
	}
	at := token.At
	l.seenCount = &at
	token.Kind = LoremCount
	return nil
}
