// Package ticker maps symbols to display names in English and Korean.
package ticker

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/newthinker/buddy/internal/core"
)

// Entry is one listed instrument.
type Entry struct {
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	KoreanName string `json:"korean_name,omitempty"`
}

// Directory is a read-mostly symbol table.
type Directory struct {
	mu       sync.RWMutex
	entries  []Entry
	bySymbol map[string]int
	byName   map[string]int
	byKorean map[string]int
}

// NewDirectory builds a directory from entries. Later duplicates win.
func NewDirectory(entries []Entry) *Directory {
	d := &Directory{}
	d.replace(entries)
	return d
}

// Load reads a CSV file with a symbol,name,korean_name header.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ticker list: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads ticker CSV. The korean_name column is optional.
func Parse(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return NewDirectory(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	symCol, ok := cols["symbol"]
	if !ok {
		return nil, fmt.Errorf("ticker list has no symbol column")
	}
	nameCol, hasName := cols["name"]
	korCol, hasKorean := cols["korean_name"]

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ticker list: %w", err)
		}
		e := Entry{Symbol: strings.ToUpper(field(rec, symCol))}
		if e.Symbol == "" {
			continue
		}
		if hasName {
			e.Name = field(rec, nameCol)
		}
		if hasKorean {
			e.KoreanName = field(rec, korCol)
		}
		entries = append(entries, e)
	}
	return NewDirectory(entries), nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func (d *Directory) replace(entries []Entry) {
	bySymbol := make(map[string]int, len(entries))
	byName := make(map[string]int, len(entries))
	byKorean := make(map[string]int)
	kept := make([]Entry, 0, len(entries))

	for _, e := range entries {
		e.Symbol = strings.ToUpper(strings.TrimSpace(e.Symbol))
		if i, ok := bySymbol[e.Symbol]; ok {
			kept[i] = e
		} else {
			bySymbol[e.Symbol] = len(kept)
			kept = append(kept, e)
		}
	}
	for i, e := range kept {
		if e.Name != "" {
			byName[fold(e.Name)] = i
		}
		if e.KoreanName != "" {
			byKorean[fold(e.KoreanName)] = i
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = kept
	d.bySymbol = bySymbol
	d.byName = byName
	d.byKorean = byKorean
}

// Len returns the number of entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Resolve returns the symbol for an exact symbol or English name match.
func (d *Directory) Resolve(query string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	q := strings.TrimSpace(query)
	if i, ok := d.bySymbol[strings.ToUpper(q)]; ok {
		return d.entries[i].Symbol, nil
	}
	if i, ok := d.byName[fold(q)]; ok {
		return d.entries[i].Symbol, nil
	}
	return "", core.Errorf(core.ErrSymbolNotFound, "%s", q)
}

// ResolveKorean returns the symbol listed under a Korean name.
func (d *Directory) ResolveKorean(name string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i, ok := d.byKorean[fold(name)]; ok {
		return d.entries[i].Symbol, nil
	}
	return "", core.Errorf(core.ErrSymbolNotFound, "%s", strings.TrimSpace(name))
}

// Name returns the display name for symbol, or the symbol itself.
func (d *Directory) Name(symbol string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if i, ok := d.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]; ok && d.entries[i].Name != "" {
		return d.entries[i].Name
	}
	return symbol
}

// Search returns entries whose symbol or names contain query, exact symbol
// matches first and the rest by symbol.
func (d *Directory) Search(query string) []Entry {
	q := fold(query)
	if q == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Entry
	for _, e := range d.entries {
		if strings.Contains(fold(e.Symbol), q) ||
			strings.Contains(fold(e.Name), q) ||
			strings.Contains(fold(e.KoreanName), q) {
			out = append(out, e)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := fold(out[i].Symbol) == q, fold(out[j].Symbol) == q
		if ei != ej {
			return ei
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
