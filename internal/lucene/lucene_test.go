package lucene

import "testing"

// ---------------------------------------------------------------------------
// Compile
// ---------------------------------------------------------------------------

func TestCompileEmptyPhrase(t *testing.T) {
	for _, opts := range []Options{{}, {Fuzzy: true}, {Wildcard: true}, {Fuzzy: true, Wildcard: true}} {
		if got := Compile("artist", "", opts); got != "" {
			t.Fatalf("empty phrase with %+v compiled to %q", opts, got)
		}
		if got := Compile("artist", "   ", opts); got != "" {
			t.Fatalf("blank phrase with %+v compiled to %q", opts, got)
		}
	}
}

func TestCompileFuzzyDistanceByLength(t *testing.T) {
	cases := []struct {
		phrase string
		want   string
	}{
		{"Ad", "artist:(Ad)"},
		{"Ash", "artist:(Ash~1)"},
		{"Adele", "artist:(Adele~1)"},
		{"Beatles", "artist:(Beatles~2)"},
	}
	for _, tc := range cases {
		got := Compile("artist", tc.phrase, Options{Fuzzy: true})
		if got != tc.want {
			t.Fatalf("Compile(%q) = %q, want %q", tc.phrase, got, tc.want)
		}
	}
}

func TestCompileWildcardLastTokenOnly(t *testing.T) {
	got := Compile("release", "dark side", Options{Wildcard: true})
	want := "release:(dark AND side*)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileFuzzyAndWildcardCombined(t *testing.T) {
	got := Compile("artist", "Radiohead", Options{Fuzzy: true, Wildcard: true})
	want := "artist:((Radiohead* OR Radiohead~2))"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileMultiWordFuzzy(t *testing.T) {
	got := Compile("release", "ok computer", Options{Fuzzy: true})
	want := "release:(ok AND computer~2)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileEscapesReservedCharacters(t *testing.T) {
	got := Compile("artist", "Oasis!", Options{})
	want := `artist:(Oasis\!)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompilePreservesAccentedLetters(t *testing.T) {
	got := Compile("artist", "Beyoncé", Options{})
	want := "artist:(Beyoncé)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCompileIsPure(t *testing.T) {
	first := Compile("artist", "Sigur Rós!", Options{Fuzzy: true, Wildcard: true})
	for i := 0; i < 10; i++ {
		if got := Compile("artist", "Sigur Rós!", Options{Fuzzy: true, Wildcard: true}); got != first {
			t.Fatalf("call %d produced %q, first call produced %q", i, got, first)
		}
	}
}

// ---------------------------------------------------------------------------
// Escape
// ---------------------------------------------------------------------------

func TestEscapeCoversReservedSet(t *testing.T) {
	got := Escape(`a+b-c&d|e!f(g)h{i}j[k]l^m"n~o*p?q:r/s`)
	want := `a\+b\-c\&d\|e\!f\(g\)h\{i\}j\[k\]l\^m\"n\~o\*p\?q\:r\/s`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEscapeIdempotent(t *testing.T) {
	once := Escape("Oasis!")
	twice := Escape(once)
	if once != twice {
		t.Fatalf("double escape changed output: %q -> %q", once, twice)
	}
}

func TestEscapeBackslash(t *testing.T) {
	if got := Escape(`a\b`); got != `a\b` {
		// A backslash followed by a non-reserved rune is treated as an
		// existing escape and left intact.
		t.Fatalf("got %q", got)
	}
}

func TestEscapeTrailingBackslash(t *testing.T) {
	once := Escape(`ab\`)
	if once != `ab\\` {
		t.Fatalf("trailing backslash left dangling: %q", once)
	}
	if twice := Escape(once); twice != once {
		t.Fatalf("double escape changed output: %q -> %q", once, twice)
	}
}

// ---------------------------------------------------------------------------
// FuzzyDistance / FoldDiacritics
// ---------------------------------------------------------------------------

func TestFuzzyDistanceCountsRunes(t *testing.T) {
	cases := []struct {
		token string
		want  int
	}{
		{"", 0},
		{"ab", 0},
		{"рок", 1},   // three Cyrillic runes, not six bytes
		{"abcde", 1},
		{"abcdef", 2},
	}
	for _, tc := range cases {
		if got := FuzzyDistance(tc.token); got != tc.want {
			t.Fatalf("FuzzyDistance(%q) = %d, want %d", tc.token, got, tc.want)
		}
	}
}

func TestFoldDiacritics(t *testing.T) {
	cases := map[string]string{
		"Beyoncé":     "Beyonce",
		"Sigur Rós":   "Sigur Ros",
		"Motörhead":   "Motorhead",
		"plain ascii": "plain ascii",
	}
	for input, want := range cases {
		if got := FoldDiacritics(input); got != want {
			t.Fatalf("FoldDiacritics(%q) = %q, want %q", input, got, want)
		}
	}
}
