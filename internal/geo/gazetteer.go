package geo

import (
	_ "embed"
	"fmt"

	"github.com/kapu/spotmyartist/internal/domain"
	"github.com/pelletier/go-toml/v2"
)

//go:embed data/gazetteer.toml
var gazetteerTOML []byte

type placeRecord struct {
	Name string  `toml:"name"`
	Lat  float64 `toml:"lat"`
	Lng  float64 `toml:"lng"`
}

type gazetteerFile struct {
	Places []placeRecord `toml:"place"`
}

// Entry is one gazetteer row.
type Entry struct {
	Key        string
	Name       string
	Coordinate domain.Coordinate
}

// Gazetteer is the static place table. It is immutable once built and safe for
// concurrent readers. Iteration follows file order.
type Gazetteer struct {
	entries []Entry
	index   map[string]int
}

// LoadGazetteer parses the embedded table.
func LoadGazetteer() (*Gazetteer, error) {
	return ParseGazetteer(gazetteerTOML)
}

// ParseGazetteer builds a gazetteer from TOML with one [[place]] table per row.
// Names are normalized; duplicate keys and out-of-range coordinates are rejected.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var file gazetteerFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}

	g := &Gazetteer{
		entries: make([]Entry, 0, len(file.Places)),
		index:   make(map[string]int, len(file.Places)),
	}
	for i, rec := range file.Places {
		key := NormalizeKey(rec.Name)
		if key == "" {
			return nil, fmt.Errorf("gazetteer place #%d has an empty name", i+1)
		}
		coord := domain.Coordinate{Lat: rec.Lat, Lng: rec.Lng}
		if !coord.Valid() {
			return nil, fmt.Errorf("gazetteer place %q has invalid coordinates (%v, %v)", rec.Name, rec.Lat, rec.Lng)
		}
		if prev, dup := g.index[key]; dup {
			return nil, fmt.Errorf("gazetteer place %q duplicates %q", rec.Name, g.entries[prev].Name)
		}
		g.index[key] = len(g.entries)
		g.entries = append(g.entries, Entry{Key: key, Name: rec.Name, Coordinate: coord})
	}
	return g, nil
}

// Lookup returns the coordinate stored under an already-normalized key.
func (g *Gazetteer) Lookup(key string) (domain.Coordinate, bool) {
	i, ok := g.index[key]
	if !ok {
		return domain.Coordinate{}, false
	}
	return g.entries[i].Coordinate, true
}

// Each calls fn for every entry in table order until fn returns false.
func (g *Gazetteer) Each(fn func(Entry) bool) {
	for _, e := range g.entries {
		if !fn(e) {
			return
		}
	}
}

func (g *Gazetteer) Len() int {
	return len(g.entries)
}
