package textclean

import (
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "numbered with dots",
			in:   "1. Understand variables\n2. Write loops\n3. Use functions",
			want: []string{"Understand variables", "Write loops", "Use functions"},
		},
		{
			name: "numbered with parens and preamble",
			in:   "Here are the objectives:\n\n1) Learn **syntax**\n2) Build a CLI\n\nGood luck!",
			want: []string{"Learn syntax", "Build a CLI"},
		},
		{
			name: "bullets",
			in:   "- First\n* Second\n• Third",
			want: []string{"First", "Second", "Third"},
		},
		{
			name: "plain lines fallback",
			in:   "Alpha\n\n  Beta  \nGamma",
			want: []string{"Alpha", "Beta", "Gamma"},
		},
		{
			name: "windows line endings",
			in:   "1. One\r\n2. Two\r\n",
			want: []string{"One", "Two"},
		},
		{
			name: "empty",
			in:   "   \n\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseList(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseList() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "## Welcome\nHello", "Welcome\nHello"},
		{"bold and italic", "This is **bold** and *italic*.", "This is bold and italic."},
		{"underscore bold", "__strong__ text", "strong text"},
		{"inline code", "Use `fmt.Println`", "Use fmt.Println"},
		{"link", "See [the docs](https://go.dev)", "See the docs"},
		{"quote", "> quoted line", "quoted line"},
		{"rule and blank lines", "a\n\n---\n\n\n\nb", "a\n\nb"},
		{"fenced block", "```markdown\n# Title\n```", "Title"},
		{"bullet star untouched", "* item", "* item"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdown(tt.in); got != tt.want {
				t.Errorf("StripMarkdown() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around", "Sure! Here it is: {\"a\":{\"b\":2}} Hope that helps.", `{"a":{"b":2}}`},
		{"array first", `[{"q":1}] trailing`, `[{"q":1}]`},
		{"no json", "nothing here", "nothing here"},
		{"unterminated", `{"a":`, `{"a":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinLines(t *testing.T) {
	if got := JoinLines([]string{"a", "b"}); got != "a\nb" {
		t.Errorf("JoinLines() = %q", got)
	}
	if got := JoinLines(nil); got != "" {
		t.Errorf("JoinLines(nil) = %q", got)
	}
}
