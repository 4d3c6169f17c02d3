package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Wire shapes of the remote API. Only the fields the catalog needs are declared.

type namedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type wireRecord struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Height int    `json:"height"`
	Weight int    `json:"weight"`
	Types  []struct {
		Slot int      `json:"slot"`
		Type namedRef `json:"type"`
	} `json:"types"`
	Stats []struct {
		BaseStat int      `json:"base_stat"`
		Stat     namedRef `json:"stat"`
	} `json:"stats"`
	Sprites struct {
		FrontDefault string `json:"front_default"`
		Other        struct {
			OfficialArtwork struct {
				FrontDefault string `json:"front_default"`
			} `json:"official-artwork"`
		} `json:"other"`
	} `json:"sprites"`
}

// DecodeRecord parses a resource body into a Record.
func DecodeRecord(raw []byte) (Record, error) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if w.ID <= 0 {
		return Record{}, fmt.Errorf("decode record: missing id")
	}
	r := Record{
		ID:     w.ID,
		Name:   w.Name,
		Height: w.Height,
		Weight: w.Weight,
		Images: Images{
			Sprite:  w.Sprites.FrontDefault,
			Artwork: w.Sprites.Other.OfficialArtwork.FrontDefault,
		},
		Categories: make([]string, 0, len(w.Types)),
		Attributes: make([]Attribute, 0, len(w.Stats)),
	}
	for _, t := range w.Types {
		r.Categories = append(r.Categories, t.Type.Name)
	}
	for _, s := range w.Stats {
		r.Attributes = append(r.Attributes, Attribute{Name: s.Stat.Name, Value: s.BaseStat})
	}
	return r, nil
}

type wireSpecies struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	FlavorTextEntries []struct {
		FlavorText string   `json:"flavor_text"`
		Language   namedRef `json:"language"`
	} `json:"flavor_text_entries"`
	EvolutionChain struct {
		URL string `json:"url"`
	} `json:"evolution_chain"`
}

// DecodeSpecies parses a species body.
func DecodeSpecies(raw []byte) (Species, error) {
	var w wireSpecies
	if err := json.Unmarshal(raw, &w); err != nil {
		return Species{}, fmt.Errorf("decode species: %w", err)
	}
	s := Species{
		ID:                w.ID,
		Name:              w.Name,
		EvolutionChainURL: w.EvolutionChain.URL,
		Descriptions:      make([]Description, 0, len(w.FlavorTextEntries)),
	}
	for _, e := range w.FlavorTextEntries {
		s.Descriptions = append(s.Descriptions, Description{Text: e.FlavorText, Language: e.Language.Name})
	}
	return s, nil
}

type wireChainLink struct {
	Species   namedRef        `json:"species"`
	EvolvesTo []wireChainLink `json:"evolves_to"`
}

// DecodeEvolutionChain parses an evolution chain body, flattening branches
// breadth-first.
func DecodeEvolutionChain(raw []byte) (EvolutionChain, error) {
	var w struct {
		ID    int           `json:"id"`
		Chain wireChainLink `json:"chain"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return EvolutionChain{}, fmt.Errorf("decode evolution chain: %w", err)
	}
	ec := EvolutionChain{ID: w.ID}
	queue := []wireChainLink{w.Chain}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		if link.Species.Name != "" {
			ec.Stages = append(ec.Stages, link.Species.Name)
		}
		queue = append(queue, link.EvolvesTo...)
	}
	return ec, nil
}

// DecodeCategories parses the category listing. Entries whose URL does not
// carry an id are skipped.
func DecodeCategories(raw []byte) ([]Category, error) {
	var w struct {
		Results []namedRef `json:"results"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	out := make([]Category, 0, len(w.Results))
	for _, r := range w.Results {
		id, ok := IDFromURL(r.URL)
		if !ok {
			continue
		}
		out = append(out, Category{ID: id, Name: r.Name})
	}
	return out, nil
}

// DecodeGroupMembers parses a group body into its member names.
func DecodeGroupMembers(raw []byte) ([]string, error) {
	var w struct {
		Species []namedRef `json:"pokemon_species"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	names := make([]string, 0, len(w.Species))
	for _, s := range w.Species {
		names = append(names, s.Name)
	}
	return names, nil
}

// IDFromURL extracts the trailing numeric segment of an API URL
// ("https://host/api/v2/type/10/" → 10).
func IDFromURL(u string) (int, bool) {
	parts := strings.Split(strings.TrimRight(u, "/"), "/")
	if len(parts) == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
