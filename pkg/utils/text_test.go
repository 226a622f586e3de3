package utils

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("привет мир", 6); got != "привет..." {
		t.Errorf("cyrillic: got %s", got)
	}
}

func TestNormSpace(t *testing.T) {
	if got := NormSpace("  ООО   \t Трубы\nи  краны "); got != "ООО Трубы и краны" {
		t.Errorf("got %q", got)
	}
}

func TestFold(t *testing.T) {
	if got := Fold("  Ёлки  ПАЛКИ "); got != "елки палки" {
		t.Errorf("got %q", got)
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Трубы, фитинги; ПНД-25 (опт)")
	want := []string{"трубы", "фитинги", "пнд", "25", "опт"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("+375 (29) 123-45-67"); got != "375291234567" {
		t.Errorf("got %q", got)
	}
}
