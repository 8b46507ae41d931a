package models

import "testing"

func TestMergeNewValuesWin(t *testing.T) {
	t.Parallel()
	c := CustomerInfo{Name: "Jane", Email: "jane@acme.com"}
	c.Merge(CustomerInfo{Email: "jane.d@acme.com", Company: "Acme"})
	if c.Email != "jane.d@acme.com" {
		t.Fatalf("Email = %q", c.Email)
	}
	if c.Company != "Acme" {
		t.Fatalf("Company = %q", c.Company)
	}
	if c.Name != "Jane" {
		t.Fatalf("Name = %q", c.Name)
	}
}

func TestMergeBlankDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	c := CustomerInfo{
		Email:             "jane@acme.com",
		Budget:            "$500k",
		CurrentChallenges: []string{"churn"},
	}
	c.Merge(CustomerInfo{})
	if c.Email != "jane@acme.com" || c.Budget != "$500k" {
		t.Fatalf("blank merge overwrote fields: %+v", c)
	}
	if len(c.CurrentChallenges) != 1 {
		t.Fatalf("challenges = %v", c.CurrentChallenges)
	}
}

func TestMergeCopiesSlices(t *testing.T) {
	t.Parallel()
	src := CustomerInfo{Stakeholders: []string{"CFO"}}
	var c CustomerInfo
	c.Merge(src)
	src.Stakeholders[0] = "mutated"
	if c.Stakeholders[0] != "CFO" {
		t.Fatal("Merge shares slice backing with source")
	}
}

func TestCloneIndependence(t *testing.T) {
	t.Parallel()
	c := CustomerInfo{PainPoints: []string{"critical churn"}}
	d := c.Clone()
	d.PainPoints[0] = "mutated"
	if c.PainPoints[0] != "critical churn" {
		t.Fatal("Clone shares slice backing")
	}
}
