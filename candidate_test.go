package photopipe

import "testing"

func TestSourceRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []Source{SourceWebsite, SourceFacebook, SourceInstagram, SourceBulkIndex, SourceGeoExtract} {
		got, err := ParseSource(s.String())
		if err != nil {
			t.Fatalf("ParseSource(%q): %v", s.String(), err)
		}
		if got != s {
			t.Errorf("round trip %v -> %q -> %v", s, s.String(), got)
		}
	}
	if _, err := ParseSource("carrier-pigeon"); err == nil {
		t.Error("unknown source accepted")
	}
}

func TestRankBefore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Rank
		want bool
	}{
		{"lower priority wins", Rank{Priority: 0, Seq: 9}, Rank{Priority: 1, Seq: 0}, true},
		{"seq breaks ties", Rank{Priority: 1, Seq: 0}, Rank{Priority: 1, Seq: 1}, true},
		{"equal is not before", Rank{Priority: 1, Seq: 1}, Rank{Priority: 1, Seq: 1}, false},
		{"higher priority loses", Rank{Priority: 5, Seq: 0}, Rank{Priority: 2, Seq: 3}, false},
	}
	for _, tc := range tests {
		if got := tc.a.Before(tc.b); got != tc.want {
			t.Errorf("%s: Before = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMergeCandidates(t *testing.T) {
	t.Parallel()

	website := []Candidate{
		{URL: "https://a/1.jpg", Source: SourceWebsite, Rank: Rank{Priority: PriorityInline, Seq: 1}},
		{URL: "https://a/0.jpg", Source: SourceWebsite, Rank: Rank{Priority: PriorityStructured, Seq: 0}},
	}
	bulk := []Candidate{
		// Duplicate URL with a worse rank: the website occurrence wins.
		{URL: "https://a/0.jpg", Source: SourceBulkIndex, Rank: Rank{Priority: PriorityBulk, Seq: 0}},
		{URL: "https://b/2.jpg", Source: SourceBulkIndex, Rank: Rank{Priority: PriorityBulk, Seq: 1}},
		{URL: "", Source: SourceBulkIndex},
	}

	merged := MergeCandidates(website, bulk)
	if len(merged) != 3 {
		t.Fatalf("got %d candidates, want 3 (dedup by URL, empty dropped)", len(merged))
	}
	if merged[0].URL != "https://a/0.jpg" || merged[0].Source != SourceWebsite {
		t.Errorf("first = %+v, want website structured candidate", merged[0])
	}
	if merged[1].URL != "https://a/1.jpg" {
		t.Errorf("second = %+v", merged[1])
	}
	if merged[2].URL != "https://b/2.jpg" {
		t.Errorf("third = %+v", merged[2])
	}
}
