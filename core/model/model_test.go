package model

import (
	"testing"
	"time"
)

func TestAddressRegion(t *testing.T) {
	if r := (Address{PostalCode: "69007"}).Region(); r != "69" {
		t.Fatalf("expected 69 got %q", r)
	}
	if r := (Address{PostalCode: "6"}).Region(); r != "" {
		t.Fatalf("expected empty region got %q", r)
	}
}

func TestCarrierReputationDefault(t *testing.T) {
	if s := (Carrier{}).Reputation(); s != DefaultCarrierScore {
		t.Fatalf("expected default score got %v", s)
	}
	if s := (Carrier{Score: 150}).Reputation(); s != 100 {
		t.Fatalf("expected capped score got %v", s)
	}
}

func TestCarrierHasCapabilities(t *testing.T) {
	c := Carrier{Capabilities: []Capability{CapabilityFrigo, CapabilityTailgate}}
	if !c.HasCapabilities([]Capability{CapabilityFrigo}) {
		t.Fatalf("expected frigo to be covered")
	}
	if c.HasCapabilities([]Capability{CapabilityFrigo, CapabilityHazardous}) {
		t.Fatalf("ADR is not declared")
	}
	if !c.HasCapabilities(nil) {
		t.Fatalf("no requirement should always match")
	}
}

func TestServiceAreaCovers(t *testing.T) {
	if !(ServiceArea{}).Covers("75") {
		t.Fatalf("empty area serves everywhere")
	}
	a := ServiceArea{Regions: []string{"69", "38"}}
	if !a.Covers("38") || a.Covers("75") {
		t.Fatalf("unexpected coverage for %v", a.Regions)
	}
}

func TestPriorityForPosition(t *testing.T) {
	want := []Priority{PriorityHigh, PriorityMedium, PriorityMedium, PriorityLow, PriorityLow}
	for i, p := range want {
		if got := PriorityForPosition(i + 1); got != p {
			t.Errorf("position %d: expected %s got %s", i+1, p, got)
		}
	}
}

func TestPricingGridPriceFor(t *testing.T) {
	g := PricingGrid{
		BasePrice: 900,
		WeightBrackets: []WeightBracket{
			{MinWeight: 0, MaxWeight: 5000, Price: 500},
			{MinWeight: 5001, MaxWeight: 20000, Price: 700},
		},
	}
	if p, ok := g.PriceFor(8000); !ok || p != 700 {
		t.Fatalf("expected bracket price 700 got %v %v", p, ok)
	}
	if p, ok := g.PriceFor(30000); !ok || p != 900 {
		t.Fatalf("expected base price 900 got %v %v", p, ok)
	}
	if _, ok := (PricingGrid{}).PriceFor(100); ok {
		t.Fatalf("empty grid has no price")
	}
}

func TestCheckInvariants(t *testing.T) {
	o := Order{ID: "o1", DispatchChain: []ChainEntry{
		{CarrierID: "a", Status: EntryRefused},
		{CarrierID: "b", Status: EntrySent},
		{CarrierID: "c", Status: EntryPending},
	}}
	if err := CheckInvariants(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.DispatchChain[2].Status = EntrySent
	if err := CheckInvariants(o); err == nil {
		t.Fatalf("expected error for two sent entries")
	}
	o.DispatchChain[2].Status = EntryAccepted
	if err := CheckInvariants(o); err == nil {
		t.Fatalf("expected error for accepted entry without assignment")
	}
	o.DispatchChain[1].Status = EntryRefused
	o.AssignedCarrierID = "c"
	if err := CheckInvariants(o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrderCloneIsDeep(t *testing.T) {
	now := time.Now()
	o := Order{ID: "o1", AcceptedAt: &now, DispatchChain: []ChainEntry{{CarrierID: "a", Response: map[string]any{"k": 1}}}}
	cp := o.Clone()
	cp.DispatchChain[0].Status = EntrySent
	cp.DispatchChain[0].Response["k"] = 2
	*cp.AcceptedAt = now.Add(time.Hour)
	if o.DispatchChain[0].Status != "" || o.DispatchChain[0].Response["k"] != 1 || !o.AcceptedAt.Equal(now) {
		t.Fatalf("clone shares state with original")
	}
}

func TestOrderPatchApply(t *testing.T) {
	o := Order{ID: "o1", Status: OrderSentToCarrier, CurrentCarrierID: "a"}
	st := OrderAccepted
	assigned := "a"
	empty := ""
	OrderPatch{Status: &st, AssignedCarrierID: &assigned, CurrentCarrierID: &empty}.Apply(&o)
	if o.Status != OrderAccepted || o.AssignedCarrierID != "a" || o.CurrentCarrierID != "" {
		t.Fatalf("patch not applied: %#v", o)
	}
	if !o.Frozen() {
		t.Fatalf("assigned order must be frozen")
	}
}
