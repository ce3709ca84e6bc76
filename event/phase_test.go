package event

import "testing"

func TestPhaseCodeRoundTrip(t *testing.T) {
	for p := DurationBegin; p <= ContextEnd; p++ {
		code := p.Code()
		if code == "" {
			t.Fatalf("phase %v has no code", p)
		}
		parsed, ok := ParsePhaseCode(code)
		if !ok {
			t.Fatalf("code %q did not parse", code)
		}
		if parsed != p {
			t.Fatalf("code %q parsed to %v, want %v", code, parsed, p)
		}
	}
}

func TestPhaseNameRoundTrip(t *testing.T) {
	for p := DurationBegin; p <= ContextEnd; p++ {
		parsed, ok := ParsePhase(p.String())
		if !ok {
			t.Fatalf("name %q did not parse", p.String())
		}
		if parsed != p {
			t.Fatalf("name %q parsed to %v, want %v", p.String(), parsed, p)
		}
	}
	if _, ok := ParsePhase("NotAPhase"); ok {
		t.Fatal("expected unknown name to fail")
	}
}

func TestPhaseCodesAreDistinct(t *testing.T) {
	seen := make(map[string]Phase)
	for p := DurationBegin; p <= ContextEnd; p++ {
		code := p.Code()
		if prev, dup := seen[code]; dup {
			t.Fatalf("code %q shared by %v and %v", code, prev, p)
		}
		seen[code] = p
	}
}

func TestSampleCodeIsUppercase(t *testing.T) {
	if Sample.Code() != "P" {
		t.Fatalf("expected Sample code P, got %q", Sample.Code())
	}
	if _, ok := ParsePhaseCode("p"); ok {
		t.Fatal("lowercase p is not a valid phase code")
	}
}

func TestPhaseTextMarshaling(t *testing.T) {
	b, err := AsyncStart.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "b" {
		t.Fatalf("expected b, got %q", string(b))
	}

	var p Phase
	if err := p.UnmarshalText([]byte("e")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != AsyncEnd {
		t.Fatalf("expected AsyncEnd, got %v", p)
	}
	if err := p.UnmarshalText([]byte("zz")); err == nil {
		t.Fatal("expected unknown code to fail")
	}
	if _, err := Phase(99).MarshalText(); err == nil {
		t.Fatal("expected out-of-range phase to fail marshaling")
	}
}
