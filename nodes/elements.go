package nodes

import (
	"fmt"
	"math/big"

	"github.com/deicod/godtl/lexer"
)

// TagElement is a value expression: a literal, a variable lookup, a loop
// variable or a filter application.
type TagElement interface {
	Node
	tagElement()
}

// Int is an integer literal of arbitrary size
type Int struct {
	BaseNode
	Value *big.Int `json:"value"`
}

// NewInt creates an integer literal
func NewInt(at lexer.Span, value *big.Int) *Int {
	return &Int{BaseNode: BaseNode{At: at}, Value: value}
}

func (i *Int) tagElement() {}

func (i *Int) Accept(visitor Visitor) interface{} {
	return visitor.Visit(i)
}

func (i *Int) String() string {
	return fmt.Sprintf("Int(%s)", i.Value)
}

func (i *Int) Type() string {
	return "Int"
}

// Float is a floating point literal
type Float struct {
	BaseNode
	Value float64 `json:"value"`
}

// NewFloat creates a float literal
func NewFloat(at lexer.Span, value float64) *Float {
	return &Float{BaseNode: BaseNode{At: at}, Value: value}
}

func (f *Float) tagElement() {}

func (f *Float) Accept(visitor Visitor) interface{} {
	return visitor.Visit(f)
}

func (f *Float) String() string {
	return fmt.Sprintf("Float(%v)", f.Value)
}

func (f *Float) Type() string {
	return "Float"
}

// Text is literal text. For a string literal At covers the content between the
// quotes; for template text it covers the whole segment.
type Text struct {
	BaseNode
}

// NewText creates a text node over at
func NewText(at lexer.Span) *Text {
	return &Text{BaseNode: BaseNode{At: at}}
}

func (t *Text) tagElement() {}

func (t *Text) Accept(visitor Visitor) interface{} {
	return visitor.Visit(t)
}

func (t *Text) String() string {
	return fmt.Sprintf("Text%s", t.At)
}

func (t *Text) Type() string {
	return "Text"
}

// TranslatedText is the string inside _("..."); At covers the string content.
type TranslatedText struct {
	BaseNode
}

// NewTranslatedText creates a translated text node over at
func NewTranslatedText(at lexer.Span) *TranslatedText {
	return &TranslatedText{BaseNode: BaseNode{At: at}}
}

func (t *TranslatedText) tagElement() {}

func (t *TranslatedText) Accept(visitor Visitor) interface{} {
	return visitor.Visit(t)
}

func (t *TranslatedText) String() string {
	return fmt.Sprintf("TranslatedText%s", t.At)
}

func (t *TranslatedText) Type() string {
	return "TranslatedText"
}

// Variable is a dotted lookup path
type Variable struct {
	BaseNode
	Parts []lexer.Span `json:"parts"`
}

// NewVariable creates a variable over at, split into parts
func NewVariable(at lexer.Span, parts []lexer.Span) *Variable {
	return &Variable{BaseNode: BaseNode{At: at}, Parts: parts}
}

func (v *Variable) tagElement() {}

func (v *Variable) Accept(visitor Visitor) interface{} {
	return visitor.Visit(v)
}

func (v *Variable) String() string {
	return fmt.Sprintf("Variable%s", v.At)
}

func (v *Variable) Type() string {
	return "Variable"
}

// ForVariant selects which forloop attribute a ForVariable reads
type ForVariant int

const (
	ForCounter ForVariant = iota
	ForCounter0
	ForRevCounter
	ForRevCounter0
	ForFirst
	ForLast
	ForObject
)

var forVariantNames = map[string]ForVariant{
	"counter":     ForCounter,
	"counter0":    ForCounter0,
	"revcounter":  ForRevCounter,
	"revcounter0": ForRevCounter0,
	"first":       ForFirst,
	"last":        ForLast,
	"parentloop":  ForObject,
}

// LookupForVariant maps a forloop attribute name to its variant.
func LookupForVariant(name string) (ForVariant, bool) {
	variant, ok := forVariantNames[name]
	return variant, ok
}

func (v ForVariant) String() string {
	switch v {
	case ForCounter:
		return "counter"
	case ForCounter0:
		return "counter0"
	case ForRevCounter:
		return "revcounter"
	case ForRevCounter0:
		return "revcounter0"
	case ForFirst:
		return "first"
	case ForLast:
		return "last"
	}
	return "object"
}

// ForVariable is a statically resolved forloop reference. ParentCount is the
// number of loops to climb before reading Variant.
type ForVariable struct {
	BaseNode
	Variant     ForVariant `json:"variant"`
	ParentCount int        `json:"parent_count"`
}

// NewForVariable creates a loop variable reference
func NewForVariable(at lexer.Span, variant ForVariant, parentCount int) *ForVariable {
	return &ForVariable{BaseNode: BaseNode{At: at}, Variant: variant, ParentCount: parentCount}
}

func (f *ForVariable) tagElement() {}

func (f *ForVariable) Accept(visitor Visitor) interface{} {
	return visitor.Visit(f)
}

func (f *ForVariable) String() string {
	return fmt.Sprintf("ForVariable(%s, parents=%d)", f.Variant, f.ParentCount)
}

func (f *ForVariable) Type() string {
	return "ForVariable"
}

// FilterKind identifies a built-in filter. External filters come from a loaded
// library.
type FilterKind int

const (
	FilterExternal FilterKind = iota
	FilterAdd
	FilterAddSlashes
	FilterCapfirst
	FilterCenter
	FilterCut
	FilterDate
	FilterDefault
	FilterDefaultIfNone
	FilterEscape
	FilterEscapejs
	FilterLength
	FilterLower
	FilterSafe
	FilterSlugify
	FilterTitle
	FilterUpper
	FilterWordcount
	FilterWordwrap
	FilterYesno
)

// BuiltinFilters maps filter names to their kinds.
var BuiltinFilters = map[string]FilterKind{
	"add":             FilterAdd,
	"addslashes":      FilterAddSlashes,
	"capfirst":        FilterCapfirst,
	"center":          FilterCenter,
	"cut":             FilterCut,
	"date":            FilterDate,
	"default":         FilterDefault,
	"default_if_none": FilterDefaultIfNone,
	"escape":          FilterEscape,
	"escapejs":        FilterEscapejs,
	"length":          FilterLength,
	"lower":           FilterLower,
	"safe":            FilterSafe,
	"slugify":         FilterSlugify,
	"title":           FilterTitle,
	"upper":           FilterUpper,
	"wordcount":       FilterWordcount,
	"wordwrap":        FilterWordwrap,
	"yesno":           FilterYesno,
}

// Argument is the value after a filter's colon
type Argument struct {
	At    lexer.Span `json:"at"`
	Value TagElement `json:"value"`
}

// Filter applies Name to Left. At is the filter name, AllAt runs from the
// start of the filtered expression to the end of the name.
type Filter struct {
	BaseNode
	AllAt    lexer.Span `json:"all_at"`
	Left     TagElement `json:"left"`
	Kind     FilterKind `json:"kind"`
	Name     string     `json:"name"`
	Arg      *Argument  `json:"arg,omitempty"`
	External any        `json:"-"`
}

func (f *Filter) tagElement() {}

// Span covers the filtered expression through the filter name.
func (f *Filter) Span() lexer.Span {
	return f.AllAt
}

func (f *Filter) GetChildren() []Node {
	children := []Node{f.Left}
	if f.Arg != nil {
		children = append(children, f.Arg.Value)
	}
	return children
}

func (f *Filter) Accept(visitor Visitor) interface{} {
	return visitor.Visit(f)
}

func (f *Filter) String() string {
	if f.Arg != nil {
		return fmt.Sprintf("Filter(%s, arg)", f.Name)
	}
	return fmt.Sprintf("Filter(%s)", f.Name)
}

func (f *Filter) Type() string {
	return "Filter"
}

// Operator is a binary condition operator
type Operator int

const (
	OpAnd Operator = iota
	OpOr
	OpEqual
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpLessThanEqual
	OpGreaterThanEqual
	OpIn
	OpNotIn
	OpIs
	OpIsNot
)

var operatorNames = [...]string{
	OpAnd:              "and",
	OpOr:               "or",
	OpEqual:            "==",
	OpNotEqual:         "!=",
	OpLessThan:         "<",
	OpGreaterThan:      ">",
	OpLessThanEqual:    "<=",
	OpGreaterThanEqual: ">=",
	OpIn:               "in",
	OpNotIn:            "not in",
	OpIs:               "is",
	OpIsNot:            "is not",
}

func (op Operator) String() string {
	if int(op) < len(operatorNames) {
		return operatorNames[op]
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// Condition is the expression of an if or elif tag
type Condition interface {
	Node
	condition()
}

// ConditionElement wraps an operand
type ConditionElement struct {
	BaseNode
	Element TagElement `json:"element"`
}

// NewConditionElement wraps element as a condition
func NewConditionElement(element TagElement) *ConditionElement {
	return &ConditionElement{BaseNode: BaseNode{At: element.Span()}, Element: element}
}

func (c *ConditionElement) condition() {}

func (c *ConditionElement) GetChildren() []Node {
	return []Node{c.Element}
}

func (c *ConditionElement) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *ConditionElement) String() string {
	return "ConditionElement"
}

func (c *ConditionElement) Type() string {
	return "ConditionElement"
}

// ConditionNot negates Operand
type ConditionNot struct {
	BaseNode
	Operand Condition `json:"operand"`
}

func (c *ConditionNot) condition() {}

func (c *ConditionNot) GetChildren() []Node {
	return []Node{c.Operand}
}

func (c *ConditionNot) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *ConditionNot) String() string {
	return "Not"
}

func (c *ConditionNot) Type() string {
	return "ConditionNot"
}

// ConditionBinary applies Op to Left and Right
type ConditionBinary struct {
	BaseNode
	Op    Operator  `json:"op"`
	Left  Condition `json:"left"`
	Right Condition `json:"right"`
}

// NewConditionBinary joins two conditions; the span covers both operands.
func NewConditionBinary(op Operator, left, right Condition) *ConditionBinary {
	return &ConditionBinary{
		BaseNode: BaseNode{At: left.Span().To(right.Span())},
		Op:       op,
		Left:     left,
		Right:    right,
	}
}

func (c *ConditionBinary) condition() {}

func (c *ConditionBinary) GetChildren() []Node {
	return []Node{c.Left, c.Right}
}

func (c *ConditionBinary) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *ConditionBinary) String() string {
	return fmt.Sprintf("Binary(%s)", c.Op)
}

func (c *ConditionBinary) Type() string {
	return "ConditionBinary"
}
