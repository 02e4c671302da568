package runtime

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/deicod/godtl/nodes"
	"github.com/deicod/godtl/parser"
)

// maxIncludeDepth bounds nested includes so recursive includes fail instead
// of overflowing the stack.
const maxIncludeDepth = 64

// missingMode says what a failed variable lookup resolves to
type missingMode int

const (
	// missingAsNone is used by if, for and template names
	missingAsNone missingMode = iota
	// missingAsEmpty is used by tag arguments
	missingAsEmpty
	// missingAsInvalid is used by {{ }} output and honours string_if_invalid
	missingAsInvalid
	// missingRaises is used by filter arguments
	missingRaises
)

// invalidOutput replaces the output of a variable that failed to resolve
// when string_if_invalid is set. The filters of the variable are skipped.
type invalidOutput struct {
	text string
}

func (i *invalidOutput) Error() string {
	return "invalid variable: " + i.text
}

// Evaluator renders the nodes of one template into out
type Evaluator struct {
	ctx  *Context
	tmpl *Template
	out  *strings.Builder
}

func newEvaluator(ctx *Context, tmpl *Template, out *strings.Builder) *Evaluator {
	return &Evaluator{ctx: ctx, tmpl: tmpl, out: out}
}

// Write appends content to the output
func (e *Evaluator) Write(content string) {
	e.out.WriteString(content)
}

// content returns the template text covered by node
func (e *Evaluator) content(node nodes.Node) string {
	return e.tmpl.source.Content(node.Span())
}

// capture renders body into a separate buffer
func (e *Evaluator) capture(body []nodes.Node) (string, error) {
	var buf strings.Builder
	inner := newEvaluator(e.ctx, e.tmpl, &buf)
	if err := inner.visitBody(body); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Evaluator) visitBody(body []nodes.Node) error {
	for _, node := range body {
		if err := e.Visit(node); err != nil {
			return err
		}
	}
	return nil
}

// Visit renders one node
func (e *Evaluator) Visit(node nodes.Node) error {
	switch n := node.(type) {
	case *nodes.Text:
		e.Write(e.content(n))
		return nil
	case *nodes.Verbatim:
		e.Write(e.tmpl.source.Content(n.Content))
		return nil
	case *nodes.TemplateTag:
		e.Write(n.Output)
		return nil
	case *nodes.Comment, *nodes.Load, *nodes.Extends:
		return nil
	case *nodes.Variable, *nodes.ForVariable, *nodes.Filter, *nodes.Int, *nodes.Float, *nodes.TranslatedText:
		return e.visitOutput(n.(nodes.TagElement))
	case *nodes.Autoescape:
		return e.visitAutoescape(n)
	case *nodes.If:
		return e.visitIf(n)
	case *nodes.For:
		return e.visitFor(n)
	case *nodes.Include:
		return e.visitInclude(n)
	case *nodes.Block:
		return e.visitBlock(n)
	case *nodes.Cycle:
		return e.visitCycle(n)
	case *nodes.SimpleTag:
		return e.visitSimpleTag(n)
	case *nodes.SimpleBlockTag:
		return e.visitSimpleBlockTag(n)
	case *nodes.Url:
		return e.visitUrl(n)
	case *nodes.CsrfToken:
		return e.visitCsrfToken(n)
	case *nodes.Lorem:
		return e.visitLorem(n)
	case *nodes.Now:
		return e.visitNow(n)
	}
	return WrapError(NewError(ErrorTypeTemplate, fmt.Sprintf("unknown node type: %T", node), node), e.tmpl, node)
}

func (e *Evaluator) visitOutput(element nodes.TagElement) error {
	value, err := e.resolve(element, missingAsInvalid)
	var invalid *invalidOutput
	if errors.As(err, &invalid) {
		e.output(NewString(invalid.text))
		return nil
	}
	if err != nil {
		return err
	}
	e.output(value)
	return nil
}

// output writes value, escaping it when autoescaping is on and the value is
// not safe
func (e *Evaluator) output(value Value) {
	text := value.String()
	if e.ctx.ShouldAutoescape() && !value.IsSafe() {
		text = Escape(text)
	}
	e.Write(text)
}

func (e *Evaluator) visitAutoescape(node *nodes.Autoescape) error {
	saved := e.ctx.ShouldAutoescape()
	e.ctx.SetAutoescape(node.Enabled)
	defer e.ctx.SetAutoescape(saved)
	return e.visitBody(node.Body)
}

func (e *Evaluator) visitIf(node *nodes.If) error {
	if e.test(node.Condition) {
		return e.visitBody(node.Truthy)
	}
	return e.visitBody(node.Falsey)
}

func (e *Evaluator) visitFor(node *nodes.For) error {
	iterable, err := e.resolve(node.Iterable, missingAsNone)
	if err != nil {
		return err
	}
	items, err := iterate(iterable)
	if err != nil {
		return WrapError(NewErrorWithCause(ErrorTypeType, err.Error(), node.Iterable, err), e.tmpl, node.Iterable)
	}
	if len(items) == 0 {
		return e.visitBody(node.Empty)
	}
	if node.Reversed {
		items = slices.Clone(items)
		slices.Reverse(items)
	}

	e.ctx.PushScope()
	defer e.ctx.PopScope()
	loop := e.ctx.PushLoop(len(items))
	defer e.ctx.PopLoop()

	for i, item := range items {
		loop.Counter0 = i
		if err := e.unpack(node, item); err != nil {
			return err
		}
		if err := e.visitBody(node.Body); err != nil {
			return err
		}
	}
	return nil
}

// unpack binds the loop variables to one item
func (e *Evaluator) unpack(node *nodes.For, item Value) error {
	if len(node.Names) == 1 {
		e.ctx.Set(node.Names[0], item)
		return nil
	}

	values, err := iterate(item)
	if err == nil && len(values) != len(node.Names) {
		err = fmt.Errorf("Need %d values to unpack in for loop; got %d.", len(node.Names), len(values))
	}
	if err != nil {
		return WrapError(NewErrorWithCause(ErrorTypeValue, err.Error(), node, err), e.tmpl, node)
	}
	for i, name := range node.Names {
		e.ctx.Set(name, values[i])
	}
	return nil
}

// iterate returns the items a for loop visits. None has no items and
// strings iterate by character.
func iterate(value Value) ([]Value, error) {
	switch value.Kind() {
	case KindNone:
		return nil, nil
	case KindString:
		s := value.String()
		items := make([]Value, 0, utf8.RuneCountInString(s))
		for _, r := range s {
			items = append(items, NewString(string(r)))
		}
		return items, nil
	case KindHost:
		return value.Host().Iterate()
	}
	return nil, fmt.Errorf("'%s' object is not iterable", value.Kind())
}

func (e *Evaluator) visitInclude(node *nodes.Include) error {
	tmpl, err := e.includedTemplate(node)
	if err != nil {
		return err
	}
	if e.ctx.includeDepth >= maxIncludeDepth {
		err := NewError(ErrorTypeTemplate, fmt.Sprintf("maximum include depth %d exceeded", maxIncludeDepth), node)
		return WrapError(err, e.tmpl, node)
	}

	kwargs := make([]Value, len(node.Kwargs))
	for i, kwarg := range node.Kwargs {
		if kwargs[i], err = e.resolve(kwarg.Value, missingAsEmpty); err != nil {
			return err
		}
	}

	ctx := e.ctx
	if node.Only {
		ctx = e.ctx.isolated()
	} else {
		ctx.PushScope()
		defer ctx.PopScope()
	}
	for i, kwarg := range node.Kwargs {
		ctx.Set(kwarg.Name, kwargs[i])
	}

	ctx.includeDepth++
	defer func() { ctx.includeDepth-- }()

	output, err := tmpl.render(ctx)
	if err != nil {
		return err
	}
	e.Write(output)
	return nil
}

// includedTemplate loads the template an include tag names: a literal path,
// a variable holding a name, a list of names or a compiled template.
func (e *Evaluator) includedTemplate(node *nodes.Include) (*Template, error) {
	env := e.ctx.environment
	if env == nil {
		return nil, WrapError(NewError(ErrorTypeTemplate, "no environment available for includes", node), e.tmpl, node)
	}
	if node.Path != "" {
		tmpl, err := env.LoadTemplate(node.Path)
		return tmpl, WrapError(err, e.tmpl, node.Template)
	}

	value, err := e.resolve(node.Template, missingAsNone)
	if err != nil {
		return nil, err
	}
	if tmpl, ok := value.Interface().(*Template); ok {
		return tmpl, nil
	}

	var names []string
	switch value.Kind() {
	case KindString:
		if value.String() != "" {
			names = append(names, value.String())
		}
	case KindHost:
		items, err := value.Host().Iterate()
		if err != nil {
			return nil, WrapError(NewErrorWithCause(ErrorTypeTemplate,
				"Included template name must be a string or iterable of strings.", node.Template, err), e.tmpl, node.Template)
		}
		for _, item := range items {
			if item.Kind() != KindString {
				return nil, WrapError(NewError(ErrorTypeTemplate,
					"include template list must contain only strings", node.Template), e.tmpl, node.Template)
			}
			names = append(names, item.String())
		}
	}
	if len(names) == 0 {
		return nil, WrapError(NewError(ErrorTypeTemplate, "No template names provided", node.Template), e.tmpl, node.Template)
	}

	for i, name := range names {
		if names[i], err = e.relativeName(name, node.Template); err != nil {
			return nil, err
		}
	}
	if len(names) == 1 {
		tmpl, err := env.LoadTemplate(names[0])
		return tmpl, WrapError(err, e.tmpl, node.Template)
	}
	tmpl, err := env.SelectTemplate(names)
	return tmpl, WrapError(err, e.tmpl, node.Template)
}

// relativeName resolves a ./ or ../ name computed at render time against
// the current template
func (e *Evaluator) relativeName(name string, node nodes.Node) (string, error) {
	resolved, ok, err := parser.ResolveRelativePath(e.tmpl.name, name)
	switch {
	case errors.Is(err, parser.ErrRelativePathUnknownOrigin):
		err := NewErrorWithCause(ErrorTypeTemplate,
			fmt.Sprintf("The relative path '%s' cannot be evaluated due to an unknown template origin.", name), node, err)
		return "", WrapError(err, e.tmpl, node)
	case errors.Is(err, parser.ErrRelativePathOutside):
		err := NewErrorWithCause(ErrorTypeTemplate,
			fmt.Sprintf("The relative path '%s' points outside the file hierarchy that template '%s' is in.", name, e.tmpl.name), node, err)
		return "", WrapError(err, e.tmpl, node)
	case !ok:
		return name, nil
	}
	return resolved, nil
}

func (e *Evaluator) visitCycle(node *nodes.Cycle) error {
	definition, tmpl := node, e.tmpl
	if node.Reference {
		named, ok := e.ctx.namedCycles[node.Name]
		if !ok {
			err := NewError(ErrorTypeTag, fmt.Sprintf("Named cycle '%s' does not exist", node.Name), node)
			return WrapError(err, e.tmpl, node)
		}
		definition, tmpl = named.node, named.template
	} else if node.Name != "" {
		e.ctx.namedCycles[node.Name] = &namedCycle{node: node, template: e.tmpl}
	}

	index := e.ctx.cycles[definition]
	e.ctx.cycles[definition] = index + 1

	owner := newEvaluator(e.ctx, tmpl, e.out)
	value, err := owner.resolve(definition.Values[index%len(definition.Values)], missingAsEmpty)
	if err != nil {
		return err
	}
	if definition.Name != "" {
		e.ctx.Set(definition.Name, value)
	}
	if !definition.Silent {
		e.output(value)
	}
	return nil
}

// callSimpleTag calls the function behind a simple tag. Block tags pass
// their rendered body as the first argument.
func (e *Evaluator) callSimpleTag(node *nodes.SimpleTag, body *string) (Value, error) {
	fn, ok := node.Func.(SimpleTagFunc)
	if !ok {
		return None(), WrapError(NewError(ErrorTypeTag, fmt.Sprintf("tag '%s' has no implementation", node.Name), node), e.tmpl, node)
	}

	args := make([]Value, 0, len(node.Args)+1)
	if body != nil {
		args = append(args, NewSafeString(*body))
	}
	for _, arg := range node.Args {
		value, err := e.resolve(arg, missingAsEmpty)
		if err != nil {
			return None(), err
		}
		args = append(args, value)
	}
	kwargs := make(map[string]Value, len(node.Kwargs))
	for _, kwarg := range node.Kwargs {
		value, err := e.resolve(kwarg.Value, missingAsEmpty)
		if err != nil {
			return None(), err
		}
		kwargs[kwarg.Name] = value
	}

	value, err := fn(e.ctx, args, kwargs)
	if err != nil {
		err = NewErrorWithCause(ErrorTypeTag, fmt.Sprintf("tag '%s': %v", node.Name, err), node, err)
		return None(), WrapError(err, e.tmpl, node)
	}
	return value, nil
}

func (e *Evaluator) simpleTagResult(node *nodes.SimpleTag, value Value) {
	if node.TargetVar != "" {
		e.ctx.Set(node.TargetVar, value)
		return
	}
	e.output(value)
}

func (e *Evaluator) visitSimpleTag(node *nodes.SimpleTag) error {
	value, err := e.callSimpleTag(node, nil)
	if err != nil {
		return err
	}
	e.simpleTagResult(node, value)
	return nil
}

func (e *Evaluator) visitSimpleBlockTag(node *nodes.SimpleBlockTag) error {
	body, err := e.capture(node.Body)
	if err != nil {
		return err
	}
	value, err := e.callSimpleTag(&node.SimpleTag, &body)
	if err != nil {
		return err
	}
	e.simpleTagResult(&node.SimpleTag, value)
	return nil
}

func (e *Evaluator) visitUrl(node *nodes.Url) error {
	var resolver URLResolver
	if e.ctx.environment != nil {
		resolver = e.ctx.environment.getURLResolver()
	}
	if resolver == nil {
		return WrapError(NewError(ErrorTypeURL, "no URL resolver configured", node), e.tmpl, node)
	}

	view, err := e.resolve(node.View, missingAsEmpty)
	if err != nil {
		return err
	}
	args := make([]Value, len(node.Args))
	for i, arg := range node.Args {
		if args[i], err = e.resolve(arg, missingAsEmpty); err != nil {
			return err
		}
	}
	kwargs := make(map[string]Value, len(node.Kwargs))
	for _, kwarg := range node.Kwargs {
		if kwargs[kwarg.Name], err = e.resolve(kwarg.Value, missingAsEmpty); err != nil {
			return err
		}
	}

	url, err := resolver(view.String(), args, kwargs)
	if err != nil {
		if node.Variable == "" || !errors.Is(err, ErrNoReverseMatch) {
			err = NewErrorWithCause(ErrorTypeURL, fmt.Sprintf("url '%s': %v", view.String(), err), node, err)
			return WrapError(err, e.tmpl, node)
		}
		url = ""
	}
	if node.Variable != "" {
		e.ctx.Set(node.Variable, NewString(url))
		return nil
	}
	e.output(NewString(url))
	return nil
}

func (e *Evaluator) visitCsrfToken(node *nodes.CsrfToken) error {
	token, ok := e.ctx.Get("csrf_token")
	if !ok || token.IsNone() {
		return nil
	}
	if value := token.String(); value != "" && value != "NOTPROVIDED" {
		e.Write(`<input type="hidden" name="csrfmiddlewaretoken" value="` + Escape(value) + `">`)
	}
	return nil
}

func (e *Evaluator) visitLorem(node *nodes.Lorem) error {
	value, err := e.resolve(node.Count, missingAsNone)
	if err != nil {
		return err
	}
	count := 1
	if n, ok := value.asInt(); ok && n.IsInt64() {
		count = int(n.Int64())
	}
	e.Write(Lorem(count, node.Method, node.Common))
	return nil
}

func (e *Evaluator) visitNow(node *nodes.Now) error {
	now := FormatDate(e.ctx.now(), node.Format)
	if node.Variable != "" {
		e.ctx.Set(node.Variable, NewString(now))
		return nil
	}
	e.output(NewString(now))
	return nil
}

// resolve evaluates a tag element to a value
func (e *Evaluator) resolve(element nodes.TagElement, mode missingMode) (Value, error) {
	switch el := element.(type) {
	case *nodes.Int:
		return NewInt(el.Value), nil
	case *nodes.Float:
		return NewFloat(el.Value), nil
	case *nodes.Text:
		return NewSafeString(e.content(el)), nil
	case *nodes.TranslatedText:
		return NewSafeString(e.ctx.translate(e.content(el))), nil
	case *nodes.Variable:
		value, found, err := e.lookup(el)
		if err != nil || found {
			return value, err
		}
		return e.missing(el, mode)
	case *nodes.ForVariable:
		return e.forVariable(el), nil
	case *nodes.Filter:
		return e.filter(el, mode)
	}
	return None(), WrapError(NewError(ErrorTypeTemplate, fmt.Sprintf("unknown element type: %T", element), element), e.tmpl, element)
}

// lookup resolves a dotted variable. found is false when any step is missing.
func (e *Evaluator) lookup(variable *nodes.Variable) (Value, bool, error) {
	name := e.tmpl.source.Content(variable.Parts[0])
	value, found := e.ctx.Get(name)
	if !found && name == "forloop" && e.ctx.loop != nil {
		value, found = NewHost(loopHost{e.ctx.loop}), true
	}
	if !found {
		return None(), false, nil
	}

	for _, part := range variable.Parts[1:] {
		next, err := attr(value, e.tmpl.source.Content(part))
		if errors.Is(err, ErrAttributeNotFound) {
			return None(), false, nil
		}
		if err != nil {
			return None(), false, WrapError(err, e.tmpl, variable)
		}
		value = next
	}
	return value, true, nil
}

// attr performs one step of a dotted lookup
func attr(value Value, name string) (Value, error) {
	switch value.Kind() {
	case KindHost:
		return value.Host().Attr(name)
	case KindString:
		if index, err := strconv.Atoi(name); err == nil {
			runes := []rune(value.String())
			if index < 0 {
				index += len(runes)
			}
			if index >= 0 && index < len(runes) {
				return keepSafety(value, string(runes[index])), nil
			}
		}
	}
	return None(), fmt.Errorf("%w: %s has no attribute %q", ErrAttributeNotFound, value.Kind(), name)
}

func (e *Evaluator) missing(element nodes.TagElement, mode missingMode) (Value, error) {
	name := e.content(element)
	switch mode {
	case missingAsEmpty:
		return NewString(""), nil
	case missingAsInvalid:
		invalid := ""
		if e.ctx.environment != nil {
			invalid = e.ctx.environment.StringIfInvalid()
		}
		if invalid == "" {
			return NewString(""), nil
		}
		return None(), &invalidOutput{text: strings.ReplaceAll(invalid, "%s", name)}
	case missingRaises:
		return None(), WrapError(NewUndefinedError(name, element), e.tmpl, element)
	}
	return None(), nil
}

// forVariable reads a forloop attribute from the loop stack
func (e *Evaluator) forVariable(variable *nodes.ForVariable) Value {
	loop, ok := e.ctx.Loop(variable.ParentCount)
	if variable.Variant == nodes.ForObject {
		return NewHost(loopHost{loop})
	}
	if !ok {
		return None()
	}
	return loop.variant(variable.Variant)
}

func (e *Evaluator) filter(filter *nodes.Filter, mode missingMode) (Value, error) {
	left, err := e.resolve(filter.Left, mode)
	if err != nil {
		return None(), err
	}

	fn, ok := builtinFilters[filter.Kind]
	if filter.Kind == nodes.FilterExternal {
		fn, ok = filter.External.(FilterFunc)
	}
	if !ok {
		err := NewFilterError(filter.Name, "filter has no implementation", filter, nil)
		return None(), WrapError(err, e.tmpl, filter)
	}

	var args []Value
	if filter.Arg != nil {
		arg, err := e.resolve(filter.Arg.Value, missingRaises)
		if err != nil {
			return None(), err
		}
		args = append(args, arg)
	}

	value, err := fn(e.ctx, left, args...)
	if err != nil {
		return None(), WrapError(NewFilterError(filter.Name, err.Error(), filter, err), e.tmpl, filter)
	}
	return value, nil
}
