package format

import "testing"

func TestFromMIMERoundTrip(t *testing.T) {
	for _, f := range All() {
		got := FromMIME(f.String())
		if got != f {
			t.Errorf("FromMIME(%q) = %v, want %v", f.String(), got, f)
		}
	}
}

func TestFromMIMEUnknown(t *testing.T) {
	for _, mime := range []string{"", "application/pdf", "text/html", "none"} {
		if got := FromMIME(mime); got != None {
			t.Errorf("FromMIME(%q) = %v, want None", mime, got)
		}
	}
}

func TestNoneIsNotValid(t *testing.T) {
	if None.Valid() {
		t.Error("None.Valid() = true, want false")
	}
	if s := None.String(); s != "none" {
		t.Errorf("None.String() = %q, want \"none\"", s)
	}
	if s := Format(42).String(); s != "none" {
		t.Errorf("Format(42).String() = %q, want \"none\"", s)
	}
}

func TestAtomNames(t *testing.T) {
	if got := Text.AtomName(); got != "UTF8_STRING" {
		t.Errorf("Text.AtomName() = %q, want UTF8_STRING", got)
	}
	if got := PNG.AtomName(); got != "image/png" {
		t.Errorf("PNG.AtomName() = %q, want image/png", got)
	}
}
