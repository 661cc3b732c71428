package richtext

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Summer launch  ", "Summer launch"},
		{"inline tags", "Looking for <b>food</b> bloggers", "Looking for food bloggers"},
		{"blocks", "<p>First</p><p>Second   line</p>", "First\nSecond line"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "one\ntwo"},
		{"script dropped", "hi<script>alert(1)</script>", "hi"},
		{"entities", "Fish &amp; chips", "Fish & chips"},
		{"empty markup", "<div> </div>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlainTextPtr(t *testing.T) {
	if PlainTextPtr(nil) != nil {
		t.Error("nil must stay nil")
	}
	blank := "<p></p>"
	if PlainTextPtr(&blank) != nil {
		t.Error("markup without text must become nil")
	}
	s := "<i>ok</i>"
	if got := PlainTextPtr(&s); got == nil || *got != "ok" {
		t.Errorf("PlainTextPtr = %v", got)
	}
}
