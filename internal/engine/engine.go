// Package engine defines the catalog of reverse-image-search backends.
package engine

import (
	"fmt"
	"sort"
	"strings"
)

// ID identifies a search backend.
type ID string

const (
	AnimeTrace ID = "animetrace"
	Baidu      ID = "baidu"
	Bing       ID = "bing"
	Copyseeker ID = "copyseeker"
	EHentai    ID = "ehentai"
	Google     ID = "google"
	SauceNAO   ID = "saucenao"
	TinEye     ID = "tineye"
)

// All lists every known engine in catalog order.
var All = []ID{AnimeTrace, Baidu, Bing, Copyseeker, EHentai, Google, SauceNAO, TinEye}

// Status classifies the outcome of resolving a user-supplied token.
type Status int

const (
	// StatusOK means the token names an enabled engine.
	StatusOK Status = iota
	// StatusDisabled means the engine exists but is switched off in config.
	StatusDisabled
	// StatusUnknown means no engine with that name exists.
	StatusUnknown
)

// Catalog is the fixed engine set filtered by configuration.
type Catalog struct {
	disabled map[ID]struct{}
}

// NewCatalog builds a catalog with the given engines disabled. Unknown
// names in the disabled list are rejected so configuration typos fail
// loudly at startup instead of silently enabling an engine.
func NewCatalog(disabled []string) (*Catalog, error) {
	c := &Catalog{disabled: make(map[ID]struct{})}
	for _, name := range disabled {
		id := ID(strings.ToLower(strings.TrimSpace(name)))
		if id == "" {
			continue
		}
		if !known(id) {
			return nil, fmt.Errorf("engine: unknown engine %q in disabled list", name)
		}
		c.disabled[id] = struct{}{}
	}
	return c, nil
}

func known(id ID) bool {
	for _, e := range All {
		if e == id {
			return true
		}
	}
	return false
}

// Resolve matches a token against the catalog case-insensitively.
func (c *Catalog) Resolve(token string) (ID, Status) {
	id := ID(strings.ToLower(strings.TrimSpace(token)))
	if id == "" || !known(id) {
		return "", StatusUnknown
	}
	if _, off := c.disabled[id]; off {
		return id, StatusDisabled
	}
	return id, StatusOK
}

// Enabled returns the enabled engines in catalog order.
func (c *Catalog) Enabled() []ID {
	out := make([]ID, 0, len(All))
	for _, id := range All {
		if _, off := c.disabled[id]; off {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Disabled returns the disabled engines sorted by name.
func (c *Catalog) Disabled() []ID {
	out := make([]ID, 0, len(c.disabled))
	for id := range c.disabled {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
