package pathparse

import "testing"

type person struct {
	First string
	Last  string
	Age   uint32
}

func parsePerson(src string) (person, bool) {
	p := person{Age: 2} // default age ;)
	ok := Parse(src, &p, "/",
		String(func(p *person) *string { return &p.First }),
		String(func(p *person) *string { return &p.Last }),
		Optional(Uint32(func(p *person, v uint32) { p.Age = v })),
	)
	return p, ok
}

func TestParseFull(t *testing.T) {
	p, ok := parsePerson("/ada/lovelace/36")
	if !ok {
		t.Fatal("parse failed")
	}
	if p.First != "ada" || p.Last != "lovelace" || p.Age != 36 {
		t.Fatalf("bad bind: %+v", p)
	}
}

func TestParseOptionalOmitted(t *testing.T) {
	p, ok := parsePerson("/ada/lovelace")
	if !ok {
		t.Fatal("parse failed")
	}
	if p.Age != 2 {
		t.Fatalf("default not kept: %+v", p)
	}
}

func TestParseFailures(t *testing.T) {
	cases := []string{
		"ada/lovelace",          // missing prefix
		"/ada",                  // missing required segment
		"/ada/lovelace/old",     // conversion failure
		"/ada/lovelace/36/more", // trailing segment
		"",                      // empty
	}
	for _, src := range cases {
		if _, ok := parsePerson(src); ok {
			t.Errorf("%q parsed, want failure", src)
		}
	}
}

func TestParseCustomPrefix(t *testing.T) {
	type lookup struct{ Key string }
	var l lookup
	ok := Parse("/entries/alpha", &l, "/entries/",
		String(func(l *lookup) *string { return &l.Key }),
	)
	if !ok || l.Key != "alpha" {
		t.Fatalf("got ok=%v key=%q", ok, l.Key)
	}
}
