package lexer

// CycleErrorKind enumerates cycle-tag failures
type CycleErrorKind int

const (
	CycleTooFewArguments CycleErrorKind = iota
	CycleMissingAsName
	CycleInvalidFlag
	CycleUnknownNamed
)

// CycleError is returned by LexCycle and, for unknown named cycles, the parser.
type CycleError struct {
	Kind CycleErrorKind
	At   Span
	Name string
}

func (e *CycleError) Error() string {
	switch e.Kind {
	case CycleTooFewArguments:
		return "'cycle' tag requires at least two arguments."
	case CycleMissingAsName:
		return "'cycle' tag with 'as' requires a variable name."
	case CycleInvalidFlag:
		return "Only 'silent' flag is allowed after cycle's name, not '" + e.Name + "'."
	default:
		return "Named cycle '" + e.Name + "' does not exist."
	}
}

func (e *CycleError) Labels() []Label {
	return []Label{label(e.At, "here")}
}

// CycleToken describes a cycle tag. A tag with a single argument and no values
// references a previously named cycle through Name.
type CycleToken struct {
	At     Span
	Values []Atom
	Name   *Span
	Silent bool
}

// LexCycle lexes `cycle v1 v2 ... [as name [silent]]` or `cycle name`.
func LexCycle(source Source, parts Span) (CycleToken, error) {
	atoms, err := NewElementLexer(source, parts).All()
	if err != nil {
		return CycleToken{}, err
	}
	token := CycleToken{At: parts}
	switch len(atoms) {
	case 0:
		return CycleToken{}, &CycleError{Kind: CycleTooFewArguments, At: parts}
	case 1:
		name := atoms[0].At
		token.Name = &name
		return token, nil
	}

	word := func(i int) string {
		if i < 0 || i >= len(atoms) || atoms[i].Kind != AtomVariable {
			return ""
		}
		return source.Content(atoms[i].At)
	}
	last := len(atoms) - 1
	switch {
	case word(last) == "as":
		return CycleToken{}, &CycleError{Kind: CycleMissingAsName, At: atoms[last].At}
	case len(atoms) >= 4 && word(last-2) == "as":
		if flag := source.Content(atoms[last].At); flag != "silent" {
			return CycleToken{}, &CycleError{Kind: CycleInvalidFlag, At: atoms[last].At, Name: flag}
		}
		name := atoms[last-1].At
		token.Name = &name
		token.Silent = true
		token.Values = atoms[:last-2]
	case len(atoms) >= 3 && word(last-1) == "as":
		name := atoms[last].At
		token.Name = &name
		token.Values = atoms[:last-1]
	default:
		token.Values = atoms
	}
	return token, nil
}
