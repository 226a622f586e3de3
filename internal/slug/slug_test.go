package slug

import "testing"

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"minsk123", "minsk-123"},
		{"Minsk123", "Minsk-123"},
		{"гомель42", "гомель-42"},
		{"ТрубСнаб7", "ТрубСнаб-7"},
		{"minsk-123", "minsk-123"},
		{"a-b-c1", "a-b-c1"},
		{"123", "123"},
		{"minsk", "minsk"},
		{"1minsk", "1minsk"},
		{"min2sk3", "min2sk3"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	for _, id := range []string{"minsk123", "брест9", "AbC0001", "already-ok", "plain", "x1y2"} {
		once := Canonicalize(id)
		if twice := Canonicalize(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", id, once, twice)
		}
	}
}

func TestCanonicalize_SingleSeparator(t *testing.T) {
	got := Canonicalize("витебск2024")
	if n := countSeparators(got); n != 1 {
		t.Errorf("expected exactly one separator in %q, got %d", got, n)
	}
}

func TestIsCanonical(t *testing.T) {
	if IsCanonical("minsk123") {
		t.Error("compact id should not be canonical")
	}
	if !IsCanonical("minsk-123") {
		t.Error("separated id should be canonical")
	}
}

func countSeparators(s string) int {
	n := 0
	for _, r := range s {
		if string(r) == Separator {
			n++
		}
	}
	return n
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want []int
	}{
		{"no duplicates", []string{"a-1", "b-2", "c-3"}, []int{0, 1, 2}},
		{"legacy first then canonical", []string{"minsk1", "b-2", "minsk-1"}, []int{2, 1}},
		{"canonical first then legacy", []string{"minsk-1", "minsk1", "b-2"}, []int{0, 2}},
		{"two legacy aliases", []string{"gomel5", "gomel5", "x"}, []int{0, 2}},
		{"empty", nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.ids)
			if len(got) != len(tt.want) {
				t.Fatalf("Dedupe(%v) = %v, want %v", tt.ids, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Dedupe(%v) = %v, want %v", tt.ids, got, tt.want)
				}
			}
		})
	}
}
