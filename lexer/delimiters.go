package lexer

// Delimiters holds the opening and closing markers of the three template constructs.
type Delimiters struct {
	BlockStart    string
	BlockEnd      string
	VariableStart string
	VariableEnd   string
	CommentStart  string
	CommentEnd    string
}

func DefaultDelimiters() Delimiters {
	return Delimiters{
		BlockStart:    "{%",
		BlockEnd:      "%}",
		VariableStart: "{{",
		VariableEnd:   "}}",
		CommentStart:  "{#",
		CommentEnd:    "#}",
	}
}

// closing returns the end delimiter matching an opening delimiter.
func (d Delimiters) closing(kind SegmentType) string {
	switch kind {
	case SegmentVariable:
		return d.VariableEnd
	case SegmentTag:
		return d.BlockEnd
	default:
		return d.CommentEnd
	}
}

// opening returns the start delimiter for a segment kind.
func (d Delimiters) opening(kind SegmentType) string {
	switch kind {
	case SegmentVariable:
		return d.VariableStart
	case SegmentTag:
		return d.BlockStart
	default:
		return d.CommentStart
	}
}
