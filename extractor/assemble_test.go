package extractor

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"listing_scrooper/models"
)

func TestAssemble_StrictGate(t *testing.T) {
	cases := []struct {
		name    string
		fields  Fields
		missing string
	}{
		{"no price", Fields{Bedrooms: 3, Bathrooms: 2}, "price"},
		{"no bedrooms", Fields{Price: 450000, Bathrooms: 2}, "bedrooms"},
		{"no bathrooms", Fields{Price: 450000, Bedrooms: 3}, "bathrooms"},
		{"nothing", Fields{}, "price, bedrooms, bathrooms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := Assemble(tc.fields, nil, oakStreetURL, GateStrict, fixedNow)
			if !errors.Is(err, ErrIncomplete) {
				t.Fatalf("expected ErrIncomplete, got %v", err)
			}
			if rec != nil {
				t.Fatalf("expected nil record")
			}
			if !strings.HasSuffix(err.Error(), "missing "+tc.missing) {
				t.Fatalf("unexpected error text %q", err.Error())
			}
		})
	}
}

func TestAssemble_LenientPlaceholders(t *testing.T) {
	rec, err := Assemble(Fields{}, nil, oakStreetURL, GateLenient, fixedNow)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	checks := map[string][2]string{
		"address":      {rec.Address, models.AddressUnknown},
		"price":        {rec.Price, models.PriceUnknown},
		"description":  {rec.Description, models.DescriptionUnknown},
		"neighborhood": {rec.Neighborhood, models.NeighborhoodUnknown},
		"propertyType": {rec.PropertyType, models.PropertyTypeUnknown},
		"agentName":    {rec.AgentName, models.AgentNameUnknown},
		"agentCompany": {rec.AgentCompany, models.AgentCompanyUnknown},
	}
	for field, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s: expected %q, got %q", field, c[1], c[0])
		}
	}
	if rec.Images == nil || rec.Features == nil {
		t.Fatalf("expected empty non-nil images and features")
	}
}

func TestAssemble_FeaturesAndClock(t *testing.T) {
	f := Fields{Price: 1250000, Bedrooms: 5, Bathrooms: 3, SquareFeet: 3200}
	local := time.Date(2024, 3, 1, 7, 0, 0, 0, time.FixedZone("CST", -5*3600))

	rec, err := Assemble(f, []string{"https://cdn.example.com/a.jpg"}, oakStreetURL, GateStrict, local)
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if rec.Price != "$1,250,000" {
		t.Fatalf("unexpected price %s", rec.Price)
	}
	want := []string{"5 bedrooms", "3 bathrooms", "3200 sqft"}
	if !reflect.DeepEqual(rec.Features, want) {
		t.Fatalf("unexpected features %v", rec.Features)
	}
	if rec.ScrapedAt.Location() != time.UTC || !rec.ScrapedAt.Equal(local) {
		t.Fatalf("expected scrapedAt in UTC, got %v", rec.ScrapedAt)
	}
}

func TestParseGatePolicy(t *testing.T) {
	for in, want := range map[string]GatePolicy{"": GateStrict, "strict": GateStrict, "Lenient": GateLenient} {
		got, err := ParseGatePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseGatePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseGatePolicy("sometimes"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
