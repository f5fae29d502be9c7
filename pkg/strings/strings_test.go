package strings

import (
	"testing"
)

func TestBuilder(t *testing.T) {
	builder := NewBuilder(32)

	builder.WriteString("act_")
	_ = builder.WriteByte('1')
	_, _ = builder.Write([]byte("23"))

	if got := builder.String(); got != "act_123" {
		t.Errorf("expected 'act_123', got '%s'", got)
	}
	if builder.Len() != 7 {
		t.Errorf("expected length 7, got %d", builder.Len())
	}

	builder.Reset()
	if builder.Len() != 0 {
		t.Errorf("expected empty builder after reset, got %d", builder.Len())
	}
}

func TestSprintf(t *testing.T) {
	if got := Sprintf("no args"); got != "no args" {
		t.Errorf("expected format returned as-is, got '%s'", got)
	}
	if got := Sprintf("%s/%s", "v18.0", "act_1"); got != "v18.0/act_1" {
		t.Errorf("unexpected result '%s'", got)
	}
}

func TestJoinPooled(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"id"}, "id"},
		{"many", []string{"id", "name", "updated_time"}, "id,name,updated_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinPooled(tt.parts, ","); got != tt.want {
				t.Errorf("expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestURLBuilder(t *testing.T) {
	ub := NewURLBuilder("https://graph.facebook.com")
	defer ub.Close()

	ub.AddPath("v18.0", "act_42", "campaigns").
		AddParam("fields", "id,name").
		AddParamInt("limit", 100).
		AddParamBool("summary", true).
		AddParam("filtering", `[{"field":"a b"}]`)

	want := "https://graph.facebook.com/v18.0/act_42/campaigns?fields=id%2Cname&limit=100&summary=true&filtering=%5B%7B%22field%22%3A%22a+b%22%7D%5D"
	if got := ub.String(); got != want {
		t.Errorf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestURLBuilderFormBody(t *testing.T) {
	ub := NewURLBuilder("")
	defer ub.Close()

	ub.AddParam("batch", "[]").AddParamBool("include_headers", false)
	if got := ub.String(); got != "batch=%5B%5D&include_headers=false" {
		t.Errorf("unexpected form body '%s'", got)
	}
}
