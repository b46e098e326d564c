package mdtemplate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    []PathSegment
		wantErr bool
	}{
		{"simple", "name", []PathSegment{{Name: "name"}}, false},
		{"dotted", "a.b.c", []PathSegment{{Name: "a"}, {Name: "b"}, {Name: "c"}}, false},
		{"indexed", "items[0]", []PathSegment{{Name: "items", HasIndex: true, Index: 0}}, false},
		{"indexed_then_dotted", "items[2].name",
			[]PathSegment{{Name: "items", HasIndex: true, Index: 2}, {Name: "name"}}, false},
		{"empty", "", nil, true},
		{"unterminated_index", "items[0", nil, true},
		{"negative_index", "items[-1]", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParsePath() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTemplateText(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    []VariableToken
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"plain", "hello", []VariableToken{{Literal: "hello"}}, false},
		{"single_var", "${name}",
			[]VariableToken{{IsVar: true, Path: []PathSegment{{Name: "name"}}}}, false},
		{"mixed", "Hello, ${name}!",
			[]VariableToken{
				{Literal: "Hello, "},
				{IsVar: true, Path: []PathSegment{{Name: "name"}}},
				{Literal: "!"},
			}, false},
		{"escaped_dollar", "price: $$${amount}",
			[]VariableToken{
				{Literal: "price: $"},
				{IsVar: true, Path: []PathSegment{{Name: "amount"}}},
			}, false},
		{"unclosed", "${name", nil, true},
		{"empty_var", "${}", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTemplateText(tt.s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTemplateText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseTemplateText() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
