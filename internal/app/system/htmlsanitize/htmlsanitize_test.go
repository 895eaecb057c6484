package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/divehub/internal/app/system/htmlsanitize"
)

func TestPlainText_Empty(t *testing.T) {
	if got := htmlsanitize.PlainText(""); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestPlainText_Unchanged(t *testing.T) {
	for _, in := range []string{"Sylvia Earle", "O'Brien", "Tom & Jerry", "Zoë Müller"} {
		if got := htmlsanitize.PlainText(in); got != in {
			t.Errorf("PlainText(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestPlainText_RemovesScript(t *testing.T) {
	got := htmlsanitize.PlainText("Ann<script>alert('xss')</script>")
	if got != "Ann" {
		t.Errorf("expected script removed, got %q", got)
	}
}

func TestPlainText_RemovesTags(t *testing.T) {
	got := htmlsanitize.PlainText(`<b>Bold</b> <a href="javascript:alert(1)">Diver</a>`)
	if got != "Bold Diver" {
		t.Errorf("expected tags stripped, got %q", got)
	}
}
