package main

import (
	"fmt"
	"strings"

	"github.com/menta2k/cardmask/pkg/decklist"
)

// collectNames merges positional names with a decklist file
func collectNames(args []string, deckPath string) ([]string, error) {
	var names []string
	if deckPath != "" {
		deck, err := decklist.ParseFile(deckPath)
		if err != nil {
			return nil, err
		}
		names = append(names, deck...)
	}
	for _, a := range args {
		if n := decklist.CleanLine(a); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no card names given; pass names or --deck")
	}
	return decklist.Dedupe(names), nil
}

// parseBlessings reads NAME=SET pairs
func parseBlessings(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, set, ok := strings.Cut(v, "=")
		name, set = strings.TrimSpace(name), strings.TrimSpace(set)
		if !ok || name == "" || set == "" {
			return nil, fmt.Errorf("invalid blessing %q, want NAME=SET", v)
		}
		out[name] = set
	}
	return out, nil
}
