package extractor

import "testing"

func TestAddressFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{oakStreetURL, "123 Oak St Austin Tx 78701"},
		{"https://www.zillow.com/homedetails/45%20Elm-AVE-Boise-ID-83702/2_zpid/", "45 Elm Ave Boise Id 83702"},
		{"https://www.zillow.com/homedetails/9-Pine-Ct?utm=x", "9 Pine Ct"},
		{"https://www.zillow.com/homedetails/123-3rd-Ave-Austin-TX-78701/1_zpid/", "123 3rd Ave Austin Tx 78701"},
		{"https://www.zillow.com/homedetails/800-W-21st-St-Austin-TX-78705/4_zpid/", "800 W 21st St Austin Tx 78705"},
		{"https://www.zillow.com/homedetails/12-O'Brien-St-McAllen-TX/5_zpid/", "12 O'brien St Mcallen Tx"},
		{"https://www.zillow.com/b/the-towers/", ""},
		{"https://www.zillow.com/homedetails//3_zpid/", ""},
	}

	for _, tc := range cases {
		if got := AddressFromURL(tc.url, "homedetails/"); got != tc.want {
			t.Errorf("AddressFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestProfile_MatchesURL(t *testing.T) {
	p := ZillowProfile()
	cases := map[string]bool{
		"https://www.zillow.com/homedetails/x/1_zpid/": true,
		"https://zillow.com/homedetails/x/1_zpid/":     true,
		"https://notzillow.com/homedetails/x/":         false,
		"https://www.redfin.com/TX/Austin/home/1":      false,
		"not a url":                                    false,
	}
	for url, want := range cases {
		if got := p.MatchesURL(url); got != want {
			t.Errorf("MatchesURL(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestProfile_ListingID(t *testing.T) {
	p := ZillowProfile()
	if got := p.ListingID(oakStreetURL); got != "1" {
		t.Fatalf("expected id 1, got %q", got)
	}
	if got := p.ListingID("https://www.zillow.com/homedetails/7-Elm-St/29361456_zpid/"); got != "29361456" {
		t.Fatalf("expected id 29361456, got %q", got)
	}
	if got := p.ListingID("https://www.zillow.com/homes/"); got != "" {
		t.Fatalf("expected no id, got %q", got)
	}
}

func TestSizingQuery(t *testing.T) {
	if got := (Sizing{Width: 640, Fit: "cover"}).Query(); got != "w=640&fit=cover" {
		t.Fatalf("unexpected sizing query %q", got)
	}
	if got := (Sizing{}).Query(); got != "" {
		t.Fatalf("expected empty query, got %q", got)
	}
}
