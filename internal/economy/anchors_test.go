package economy

import "testing"

func TestDefaultAnchors(t *testing.T) {
	a := DefaultAnchors()
	if a.Len() != 10 {
		t.Fatalf("len = %d, want 10", a.Len())
	}
	if first, ok := a.First(); !ok || first != 2015 {
		t.Fatalf("first = %d, %v", first, ok)
	}
	got, ok := a.Lookup(2020)
	if !ok || got.GDP != 1163 || got.Inflation != 3.4 || got.Unemployment != 6.3 {
		t.Fatalf("2020 = %+v, %v", got, ok)
	}
}

func TestAnchorNext(t *testing.T) {
	a, err := ParseAnchors([]byte(`
years:
  - {year: 2010, gdp: 900, inflation: 1, unemployment: 5}
  - {year: 2000, gdp: 800, inflation: 2, unemployment: 6}
  - {year: 2005, gdp: 850, inflation: 3, unemployment: 7}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tests := []struct {
		year    int
		next    int
		hasNext bool
	}{
		{1990, 2000, true},
		{2000, 2005, true},
		{2003, 2005, true},
		{2005, 2010, true},
		{2010, 0, false},
	}
	for _, tt := range tests {
		next, ok := a.Next(tt.year)
		if next != tt.next || ok != tt.hasNext {
			t.Errorf("Next(%d) = %d, %v; want %d, %v", tt.year, next, ok, tt.next, tt.hasNext)
		}
	}

	all := a.All()
	if len(all) != 3 || all[0].Year != 2000 || all[2].Year != 2010 {
		t.Fatalf("All not sorted: %+v", all)
	}
}

func TestParseAnchorsRejects(t *testing.T) {
	tests := map[string]string{
		"empty":     "years: []\n",
		"duplicate": "years:\n  - {year: 2000, gdp: 1}\n  - {year: 2000, gdp: 2}\n",
		"negative":  "years:\n  - {year: 2000, gdp: -1}\n",
		"syntax":    "years: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAnchors([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNilAnchorTable(t *testing.T) {
	var a *AnchorTable
	if _, ok := a.Lookup(2000); ok {
		t.Fatalf("nil table lookup hit")
	}
	if _, ok := a.Next(2000); ok {
		t.Fatalf("nil table next hit")
	}
	if a.Len() != 0 || a.All() != nil {
		t.Fatalf("nil table not empty")
	}
}

func TestCampaignUnknownStartYear(t *testing.T) {
	m := newTestModel()
	s := m.NewSnapshot(ModeCampaign, 1990)
	if s.Output != 1000 || s.Year != 1990 {
		t.Fatalf("snapshot = %+v", s)
	}
	if _, err := m.PlayTurn(s, balanced, nil, nil); err != nil {
		t.Fatalf("play: %v", err)
	}
	if s.Year != 2015 {
		t.Fatalf("year = %d, want first anchor after 1990", s.Year)
	}
}
