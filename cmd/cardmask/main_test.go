package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/menta2k/cardmask"
	"github.com/menta2k/cardmask/internal/config"
	"github.com/menta2k/cardmask/pkg/types"
)

const testCatalogJSON = `{
  "M15": {
    "code": "M15", "name": "Magic 2015", "releaseDate": "2014-07-18", "border": "black",
    "cards": [
      {"name": "Shock", "number": "156", "layout": "normal", "colorIdentity": ["R"]}
    ]
  },
  "LEG": {
    "code": "LEG", "name": "Legends", "releaseDate": "1994-06-01", "border": "black",
    "cards": [
      {"name": "Lightning Bolt", "number": "150", "layout": "normal"}
    ]
  }
}`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	catPath := filepath.Join(base, "AllSets.json")
	if err := os.WriteFile(catPath, []byte(testCatalogJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Catalog.Path = catPath
	cfg.Catalog.URL = ""
	cfg.Catalog.BannedSets = []string{"leg"}
	cfg.Cache.Path = filepath.Join(base, "cache", "images.db")
	cfg.Output.Dir = filepath.Join(base, "out")

	path := filepath.Join(base, "config.toml")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCLI(t, "--config", path, "--log-level", "error", "resolve", "4 Shock", "Lightning Bolt")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 names not resolved") {
		t.Fatalf("Expected one unresolved name, got %v", err)
	}
	if !strings.Contains(out, "m15") || !strings.Contains(out, "156") {
		t.Errorf("Expected resolved printing in output:\n%s", out)
	}
	if !strings.Contains(out, "not found") {
		t.Errorf("Expected banned-only card to be reported:\n%s", out)
	}
}

func TestResolveCommandBlessing(t *testing.T) {
	path := writeTestConfig(t)

	out, err := runCLI(t, "--config", path, "resolve", "--bless", "Lightning Bolt=leg", "Lightning Bolt")
	if err != nil {
		t.Fatalf("Expected blessing to resolve banned set: %v\n%s", err, out)
	}
	if !strings.Contains(out, "leg") {
		t.Errorf("Expected leg printing:\n%s", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardmask", "config.toml")

	if _, err := runCLI(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := config.LoadFromFile(path); err != nil {
		t.Fatalf("Expected loadable config: %v", err)
	}
	if _, err := runCLI(t, "--config", path, "config", "init"); err == nil {
		t.Error("Expected refusal to overwrite")
	}
	if out, err := runCLI(t, "--config", path, "config", "validate"); err != nil || !strings.Contains(out, "is valid") {
		t.Errorf("config validate: %v %s", err, out)
	}
}

func TestCollectNames(t *testing.T) {
	deck := filepath.Join(t.TempDir(), "deck.txt")
	if err := os.WriteFile(deck, []byte("4 Shock\n2 Forest\n"), 0644); err != nil {
		t.Fatal(err)
	}
	names, err := collectNames([]string{"1 shock", "Island"}, deck)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, "|") != "Shock|Forest|Island" {
		t.Errorf("Unexpected names %v", names)
	}
	if _, err := collectNames(nil, ""); err == nil {
		t.Error("Expected error without names")
	}
}

func TestCollectNamesKeepsNumericNames(t *testing.T) {
	deck := filepath.Join(t.TempDir(), "deck.txt")
	if err := os.WriteFile(deck, []byte("1 1996 World Champion\n4 Lightning Bolt\n"), 0644); err != nil {
		t.Fatal(err)
	}
	names, err := collectNames(nil, deck)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, "|") != "1996 World Champion|Lightning Bolt" {
		t.Errorf("Unexpected names %v", names)
	}
}

func TestParseBlessings(t *testing.T) {
	got, err := parseBlessings([]string{"Lightning Bolt = m10"})
	if err != nil || got["Lightning Bolt"] != "m10" {
		t.Errorf("parseBlessings() = %v, %v", got, err)
	}
	if _, err := parseBlessings([]string{"nope"}); err == nil {
		t.Error("Expected error for missing set")
	}
}

func TestRenderResults(t *testing.T) {
	set := types.NewSetRecord("M15", "Magic 2015", time.Date(2014, 7, 18, 0, 0, 0, 0, time.UTC), types.BorderBlack)
	card := &types.CardRecord{Name: "Shock", Number: "156"}
	set.AddCard(card)

	results := []cardmask.Result{
		{Name: "Shock", Card: card, Path: "/out/Shock.png"},
		{Name: "Forest", Err: &cardmask.CardError{Name: "Forest", Kind: cardmask.ErrNameNotResolved, Err: errors.New("card not found")}},
	}
	out := renderResults(results, newStatusPainter(&bytes.Buffer{}))
	for _, want := range []string{"/out/Shock.png", "m15", "failed", "name not resolved: card not found"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table:\n%s", want, out)
		}
	}
}
