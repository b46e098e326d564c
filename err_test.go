package mdtemplate

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	e := newError(SelectorError, "compile selector", errors.New("unexpected token")).
		WithPath("html/body/ul/li")

	got := e.Error()
	want := "selector: compile selector (at html/body/ul/li): unexpected token"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := newError(DomError, "serialize", cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is should see through Unwrap to the cause")
	}
}

func TestError_Is_MatchesByKind(t *testing.T) {
	a := newError(ConstraintError, "evaluate", errors.New("x"))
	b := newError(ConstraintError, "parse", errors.New("y"))
	c := newError(RenderError, "bind", errors.New("z"))

	if !errors.Is(a, b) {
		t.Error("errors of the same Kind should match via Is")
	}
	if errors.Is(a, c) {
		t.Error("errors of different Kind should not match via Is")
	}
}

func TestBuildErrorPath(t *testing.T) {
	got := buildErrorPath([]string{"html", "body", "ul", "li"})
	if got != "html/body/ul/li" {
		t.Errorf("buildErrorPath() = %q", got)
	}
}
