package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mm-osint/newswire/internal/collector"
)

// Seed is the on-disk format for bulk channel registration:
//
//	channels:
//	  - name: nugmyanmar
//	    display_name: National Unity Government of Myanmar
//	    category: politics
//	  - name: mizzima_daily
//	    paused: true
//
// Entries are active unless paused, so a plain list of names is a valid
// seed file.
type Seed struct {
	Channels []SeedChannel `yaml:"channels"`
}

// SeedChannel is one channel entry. Only the name is required; the display
// name falls back to the title fetched from telegram during import.
type SeedChannel struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Category    string `yaml:"category"`
	Paused      bool   `yaml:"paused"`
}

func loadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSeed(data)
}

// parseSeed decodes and validates a seed document. Seed files are hand
// edited, so unknown keys are rejected instead of silently dropped; a
// misspelled display_name should fail validation, not import a channel
// without one.
func parseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no channels defined")
		}
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(seed.Channels) == 0 {
		return nil, fmt.Errorf("no channels defined")
	}

	seen := make(map[string]bool, len(seed.Channels))
	for i := range seed.Channels {
		c := &seed.Channels[i]
		req := collector.CreateChannelRequest{Name: c.Name}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("channel %d (%q): %w", i+1, c.Name, err)
		}
		c.Name = req.Name
		if seen[c.Name] {
			return nil, fmt.Errorf("channel %d: duplicate entry %s", i+1, c.Name)
		}
		seen[c.Name] = true
	}
	return &seed, nil
}
