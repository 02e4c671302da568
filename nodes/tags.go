package nodes

import (
	"fmt"

	"github.com/deicod/godtl/lexer"
)

// Kwarg is a name=value argument of a tag
type Kwarg struct {
	Name  string     `json:"name"`
	At    lexer.Span `json:"at"`
	Value TagElement `json:"value"`
}

func kwargValues(kwargs []Kwarg) []Node {
	children := make([]Node, 0, len(kwargs))
	for _, kwarg := range kwargs {
		children = append(children, kwarg.Value)
	}
	return children
}

func elementNodes(elements []TagElement) []Node {
	children := make([]Node, 0, len(elements))
	for _, element := range elements {
		children = append(children, element)
	}
	return children
}

// Autoescape switches HTML escaping for its body
type Autoescape struct {
	BaseNode
	Enabled bool   `json:"enabled"`
	Body    []Node `json:"body"`
}

func (a *Autoescape) GetChildren() []Node {
	return bodyChildren(a.Body)
}

func (a *Autoescape) Accept(visitor Visitor) interface{} {
	return visitor.Visit(a)
}

func (a *Autoescape) String() string {
	return fmt.Sprintf("Autoescape(%t)", a.Enabled)
}

func (a *Autoescape) Type() string {
	return "Autoescape"
}

// If renders Truthy when Condition holds and Falsey otherwise. An elif chain is
// a single nested If in Falsey.
type If struct {
	BaseNode
	Condition Condition `json:"condition"`
	Truthy    []Node    `json:"truthy"`
	Falsey    []Node    `json:"falsey,omitempty"`
}

func (i *If) GetChildren() []Node {
	return bodyChildren([]Node{i.Condition}, i.Truthy, i.Falsey)
}

func (i *If) Accept(visitor Visitor) interface{} {
	return visitor.Visit(i)
}

func (i *If) String() string {
	return fmt.Sprintf("If(%d, %d)", len(i.Truthy), len(i.Falsey))
}

func (i *If) Type() string {
	return "If"
}

// For iterates Iterable binding Names; Empty renders when there is nothing to
// iterate.
type For struct {
	BaseNode
	Iterable TagElement   `json:"iterable"`
	Names    []string     `json:"names"`
	NamesAt  []lexer.Span `json:"names_at"`
	Reversed bool         `json:"reversed"`
	Body     []Node       `json:"body"`
	Empty    []Node       `json:"empty,omitempty"`
}

func (f *For) GetChildren() []Node {
	return bodyChildren([]Node{f.Iterable}, f.Body, f.Empty)
}

func (f *For) Accept(visitor Visitor) interface{} {
	return visitor.Visit(f)
}

func (f *For) String() string {
	return fmt.Sprintf("For(%v, reversed=%t)", f.Names, f.Reversed)
}

func (f *For) Type() string {
	return "For"
}

// Include renders another template. Path is set when a relative name was
// resolved against the including template.
type Include struct {
	BaseNode
	Template TagElement `json:"template"`
	Path     string     `json:"path,omitempty"`
	Kwargs   []Kwarg    `json:"kwargs,omitempty"`
	Only     bool       `json:"only"`
}

func (i *Include) GetChildren() []Node {
	return bodyChildren([]Node{i.Template}, kwargValues(i.Kwargs))
}

func (i *Include) Accept(visitor Visitor) interface{} {
	return visitor.Visit(i)
}

func (i *Include) String() string {
	return fmt.Sprintf("Include(only=%t, %d kwargs)", i.Only, len(i.Kwargs))
}

func (i *Include) Type() string {
	return "Include"
}

// Load records the libraries a load tag made available. It renders nothing.
type Load struct {
	BaseNode
	Library string   `json:"library,omitempty"`
	Names   []string `json:"names"`
}

func (l *Load) Accept(visitor Visitor) interface{} {
	return visitor.Visit(l)
}

func (l *Load) String() string {
	if l.Library != "" {
		return fmt.Sprintf("Load(%v from %s)", l.Names, l.Library)
	}
	return fmt.Sprintf("Load(%v)", l.Names)
}

func (l *Load) Type() string {
	return "Load"
}

// SimpleTag calls a registered tag function. Func is the library's opaque handle.
type SimpleTag struct {
	BaseNode
	Name         string       `json:"name"`
	Func         any          `json:"-"`
	TakesContext bool         `json:"takes_context"`
	Args         []TagElement `json:"args,omitempty"`
	Kwargs       []Kwarg      `json:"kwargs,omitempty"`
	TargetVar    string       `json:"target_var,omitempty"`
}

func (s *SimpleTag) GetChildren() []Node {
	return bodyChildren(elementNodes(s.Args), kwargValues(s.Kwargs))
}

func (s *SimpleTag) Accept(visitor Visitor) interface{} {
	return visitor.Visit(s)
}

func (s *SimpleTag) String() string {
	return fmt.Sprintf("SimpleTag(%s)", s.Name)
}

func (s *SimpleTag) Type() string {
	return "SimpleTag"
}

// SimpleBlockTag is a SimpleTag whose rendered body is passed as content.
type SimpleBlockTag struct {
	SimpleTag
	Body []Node `json:"body"`
}

func (s *SimpleBlockTag) GetChildren() []Node {
	return bodyChildren(s.SimpleTag.GetChildren(), s.Body)
}

func (s *SimpleBlockTag) Accept(visitor Visitor) interface{} {
	return visitor.Visit(s)
}

func (s *SimpleBlockTag) String() string {
	return fmt.Sprintf("SimpleBlockTag(%s)", s.Name)
}

func (s *SimpleBlockTag) Type() string {
	return "SimpleBlockTag"
}

// Url reverses a view name through the environment's resolver
type Url struct {
	BaseNode
	View     TagElement   `json:"view"`
	Args     []TagElement `json:"args,omitempty"`
	Kwargs   []Kwarg      `json:"kwargs,omitempty"`
	Variable string       `json:"variable,omitempty"`
}

func (u *Url) GetChildren() []Node {
	return bodyChildren([]Node{u.View}, elementNodes(u.Args), kwargValues(u.Kwargs))
}

func (u *Url) Accept(visitor Visitor) interface{} {
	return visitor.Visit(u)
}

func (u *Url) String() string {
	return fmt.Sprintf("Url(%d args, %d kwargs)", len(u.Args), len(u.Kwargs))
}

func (u *Url) Type() string {
	return "Url"
}

// CsrfToken renders the hidden CSRF form field
type CsrfToken struct {
	BaseNode
}

func (c *CsrfToken) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *CsrfToken) String() string {
	return "CsrfToken"
}

func (c *CsrfToken) Type() string {
	return "CsrfToken"
}

// Lorem generates placeholder text
type Lorem struct {
	BaseNode
	Count  TagElement        `json:"count"`
	Method lexer.LoremMethod `json:"method"`
	Common bool              `json:"common"`
}

func (l *Lorem) GetChildren() []Node {
	return []Node{l.Count}
}

func (l *Lorem) Accept(visitor Visitor) interface{} {
	return visitor.Visit(l)
}

func (l *Lorem) String() string {
	return fmt.Sprintf("Lorem(%s, common=%t)", l.Method, l.Common)
}

func (l *Lorem) Type() string {
	return "Lorem"
}

// Comment is a {% comment %} block; it spans up to and including endcomment.
type Comment struct {
	BaseNode
}

func (c *Comment) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *Comment) String() string {
	return "Comment"
}

func (c *Comment) Type() string {
	return "Comment"
}

// Now renders the current time with Format
type Now struct {
	BaseNode
	Format   string `json:"format"`
	Variable string `json:"variable,omitempty"`
}

func (n *Now) Accept(visitor Visitor) interface{} {
	return visitor.Visit(n)
}

func (n *Now) String() string {
	return fmt.Sprintf("Now(%q)", n.Format)
}

func (n *Now) Type() string {
	return "Now"
}

// TemplateTag renders one of the syntax characters
type TemplateTag struct {
	BaseNode
	Output string `json:"output"`
}

func (t *TemplateTag) Accept(visitor Visitor) interface{} {
	return visitor.Visit(t)
}

func (t *TemplateTag) String() string {
	return fmt.Sprintf("TemplateTag(%q)", t.Output)
}

func (t *TemplateTag) Type() string {
	return "TemplateTag"
}

// Cycle outputs the next of Values each time it renders. A Reference node
// advances the cycle defined earlier under Name.
type Cycle struct {
	BaseNode
	Values    []TagElement `json:"values,omitempty"`
	Name      string       `json:"name,omitempty"`
	Silent    bool         `json:"silent"`
	Reference bool         `json:"reference"`
}

func (c *Cycle) GetChildren() []Node {
	return elementNodes(c.Values)
}

func (c *Cycle) Accept(visitor Visitor) interface{} {
	return visitor.Visit(c)
}

func (c *Cycle) String() string {
	if c.Reference {
		return fmt.Sprintf("Cycle(ref %s)", c.Name)
	}
	return fmt.Sprintf("Cycle(%d values, name=%q)", len(c.Values), c.Name)
}

func (c *Cycle) Type() string {
	return "Cycle"
}

// Block is an overridable section of an inherited template
type Block struct {
	BaseNode
	Name string `json:"name"`
	Body []Node `json:"body"`
}

func (b *Block) GetChildren() []Node {
	return bodyChildren(b.Body)
}

func (b *Block) Accept(visitor Visitor) interface{} {
	return visitor.Visit(b)
}

func (b *Block) String() string {
	return fmt.Sprintf("Block(%s)", b.Name)
}

func (b *Block) Type() string {
	return "Block"
}

// Extends names the parent template
type Extends struct {
	BaseNode
	Parent TagElement `json:"parent"`
	Path   string     `json:"path,omitempty"`
}

func (e *Extends) GetChildren() []Node {
	return []Node{e.Parent}
}

func (e *Extends) Accept(visitor Visitor) interface{} {
	return visitor.Visit(e)
}

func (e *Extends) String() string {
	return "Extends"
}

func (e *Extends) Type() string {
	return "Extends"
}

// Verbatim outputs Content without interpreting it
type Verbatim struct {
	BaseNode
	Content lexer.Span `json:"content"`
}

func (v *Verbatim) Accept(visitor Visitor) interface{} {
	return visitor.Visit(v)
}

func (v *Verbatim) String() string {
	return fmt.Sprintf("Verbatim%s", v.Content)
}

func (v *Verbatim) Type() string {
	return "Verbatim"
}
