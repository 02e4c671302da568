package lexer

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func segments(t *testing.T, config LexerConfig, template string) []Segment {
	t.Helper()
	stream, err := NewLexer(config).Tokenize(NewSource(template))
	if err != nil {
		t.Fatalf("Tokenize(%q) unexpected error: %v", template, err)
	}
	return stream.Segments()
}

func TestScannerSegments(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     []Segment
	}{
		{
			name:     "text only",
			template: "Hello, World!",
			want:     []Segment{{Type: SegmentText, At: NewSpan(0, 13), Content: NewSpan(0, 13)}},
		},
		{
			name:     "variable",
			template: "Hello {{ name }}!",
			want: []Segment{
				{Type: SegmentText, At: NewSpan(0, 6), Content: NewSpan(0, 6)},
				{Type: SegmentVariable, At: NewSpan(6, 10), Content: NewSpan(9, 4)},
				{Type: SegmentText, At: NewSpan(16, 1), Content: NewSpan(16, 1)},
			},
		},
		{
			name:     "tag and comment",
			template: "{% if x %}{# note #}",
			want: []Segment{
				{Type: SegmentTag, At: NewSpan(0, 10), Content: NewSpan(3, 4)},
				{Type: SegmentComment, At: NewSpan(10, 10), Content: NewSpan(13, 4)},
			},
		},
		{
			name:     "newline before close is text",
			template: "{% if '\n' %}",
			want: []Segment{
				{Type: SegmentText, At: NewSpan(0, 8), Content: NewSpan(0, 8)},
				{Type: SegmentText, At: NewSpan(8, 4), Content: NewSpan(8, 4)},
			},
		},
		{
			name:     "empty variable",
			template: "{{}}",
			want:     []Segment{{Type: SegmentVariable, At: NewSpan(0, 4), Content: NewSpan(2, 0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := segments(t, DefaultLexerConfig(), tt.template)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScannerUnclosed(t *testing.T) {
	_, err := Tokenize("text {{ foo")
	var lexErr *LexerError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected LexerError, got %v", err)
	}
	if lexErr.At != NewSpan(5, 2) {
		t.Errorf("error span = %s, want (5, 2)", lexErr.At)
	}
	if !strings.Contains(lexErr.Error(), "Unclosed variable") {
		t.Errorf("unexpected message %q", lexErr.Error())
	}

	config := DefaultLexerConfig()
	config.StrictDelimiters = false
	got := segments(t, config, "text {{ foo")
	want := []Segment{
		{Type: SegmentText, At: NewSpan(0, 5), Content: NewSpan(0, 5)},
		{Type: SegmentText, At: NewSpan(5, 6), Content: NewSpan(5, 6)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("lenient segments mismatch (-want +got):\n%s", diff)
	}
}

func TestScannerCustomDelimiters(t *testing.T) {
	config := DefaultLexerConfig()
	config.Delimiters.VariableStart = "[["
	config.Delimiters.VariableEnd = "]]"
	got := segments(t, config, "{{ a }}[[ b ]]")
	if len(got) != 2 || got[1].Type != SegmentVariable || got[1].Content != NewSpan(10, 1) {
		t.Errorf("unexpected segments %v", got)
	}
}

func TestScannerRoundTrip(t *testing.T) {
	templates := []string{
		"",
		"plain",
		"a {{ b }} c {% d %} e {# f #} g",
		"{% if '\n' %}{{ x }}\n{#",
		"{{ a }}{{ b }}{%c%}",
		"héllo {{ wörld }} ✓",
	}
	config := DefaultLexerConfig()
	config.StrictDelimiters = false
	for _, template := range templates {
		source := NewSource(template)
		var rebuilt strings.Builder
		next := 0
		for _, segment := range segments(t, config, template) {
			if segment.At.Offset != next {
				t.Fatalf("%q: gap before %s", template, segment)
			}
			next = segment.At.End()
			rebuilt.WriteString(source.Content(segment.At))
		}
		if rebuilt.String() != template {
			t.Errorf("round trip of %q produced %q", template, rebuilt.String())
		}
	}
}

func TestScannerIdempotent(t *testing.T) {
	template := "a {{ b|upper }} {% for x in y %}{{ x }}{% endfor %}"
	first := segments(t, DefaultLexerConfig(), template)
	second := segments(t, DefaultLexerConfig(), template)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("scanning twice differs:\n%s", diff)
	}
}

func TestSourcePosition(t *testing.T) {
	source := NewSource("line 1\nline 2 {{ variable }}\nline 3")
	line, column := source.Position(14)
	if line != 2 || column != 8 {
		t.Errorf("Position(14) = %d:%d, want 2:8", line, column)
	}
	text, start := source.Line(14)
	if text != "line 2 {{ variable }}" || start != 7 {
		t.Errorf("Line(14) = %q, %d", text, start)
	}
}

func TestLexTag(t *testing.T) {
	tests := []struct {
		template string
		want     Tag
		wantErr  *TagError
	}{
		{
			template: "{% csrftoken %}",
			want:     Tag{At: NewSpan(0, 15), Name: NewSpan(3, 9), Parts: NewSpan(12, 0)},
		},
		{
			template: "{% url name arg %}",
			want:     Tag{At: NewSpan(0, 18), Name: NewSpan(3, 3), Parts: NewSpan(7, 8)},
		},
		{
			template: "{% url'foo' %}",
			wantErr:  &TagError{Kind: TagErrorInvalidName, At: NewSpan(3, 8)},
		},
		{
			template: "{%   %}",
			wantErr:  &TagError{Kind: TagErrorEmpty, At: NewSpan(0, 7)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			source := NewSource(tt.template)
			segment := segments(t, DefaultLexerConfig(), tt.template)[0]
			got, err := LexTag(source, segment)
			if tt.wantErr != nil {
				if diff := cmp.Diff(tt.wantErr, err); diff != "" {
					t.Errorf("error mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("tag mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsIdentifier(t *testing.T) {
	for s, want := range map[string]bool{
		"name":  true,
		"_name": true,
		"näme":  true,
		"1name": false,
		"na-me": false,
		"":      false,
	} {
		if got := IsIdentifier(s); got != want {
			t.Errorf("IsIdentifier(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestScannerSkipToTag(t *testing.T) {
	source := NewSource("{% comment %}{{ x {% if %}{% endcomment %}after")
	scanner := NewLexer(DefaultLexerConfig()).Scan(source)

	if _, ok, err := scanner.Next(); !ok || err != nil {
		t.Fatalf("Next() = %v, %v", ok, err)
	}

	isEnd := func(content string) bool { return content == "endcomment" }
	tag, ok := scanner.SkipToTag(isEnd)
	if !ok {
		t.Fatal("SkipToTag did not find endcomment")
	}
	want := Segment{Type: SegmentTag, At: NewSpan(26, 16), Content: NewSpan(29, 10)}
	if diff := cmp.Diff(want, tag); diff != "" {
		t.Errorf("SkipToTag() mismatch (-want +got):\n%s", diff)
	}

	next, ok, err := scanner.Next()
	if !ok || err != nil || source.Content(next.At) != "after" {
		t.Errorf("Next() after skip = %v %v %v, want the trailing text", next, ok, err)
	}

	if _, ok := scanner.SkipToTag(isEnd); ok {
		t.Error("SkipToTag matched past the end of the input")
	}
}
