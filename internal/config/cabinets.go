package config

import (
	"fmt"
	"strings"
)

// Cabinet is one seller account reachable from the console.
type Cabinet struct {
	Name string `yaml:"name" validate:"required"`
	ID   string `yaml:"id" validate:"required,numeric"`
}

// CabinetList keeps cabinets in processing order.
type CabinetList []Cabinet

// DefaultCabinets returns the built-in cabinet list.
func DefaultCabinets() CabinetList {
	return CabinetList{
		{Name: "MAU", ID: "53607"},
		{Name: "MAB", ID: "121614"},
		{Name: "MMA", ID: "174711"},
		{Name: "cosmo", ID: "224650"},
		{Name: "dreamlab", ID: "1140223"},
		{Name: "beautylab", ID: "4428365"},
	}
}

// Decode parses "NAME:ID,NAME:ID" from the environment.
func (l *CabinetList) Decode(value string) error {
	var out CabinetList
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, id, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("cabinet %q: expected NAME:ID", pair)
		}
		out = append(out, Cabinet{Name: strings.TrimSpace(name), ID: strings.TrimSpace(id)})
	}
	*l = out
	return nil
}

// Find returns the cabinet with the given name, compared case-insensitively.
func (l CabinetList) Find(name string) (Cabinet, bool) {
	for _, c := range l {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Cabinet{}, false
}

// Filter keeps only the named cabinets, preserving list order. Unknown names
// are an error.
func (l CabinetList) Filter(names []string) (CabinetList, error) {
	if len(names) == 0 {
		return l, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := l.Find(n); !ok {
			return nil, fmt.Errorf("unknown cabinet %q", n)
		}
		want[strings.ToLower(n)] = true
	}
	var out CabinetList
	for _, c := range l {
		if want[strings.ToLower(c.Name)] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (l CabinetList) checkUnique() error {
	seen := make(map[string]bool, len(l))
	for _, c := range l {
		key := strings.ToLower(c.Name)
		if seen[key] {
			return fmt.Errorf("duplicate cabinet %q", c.Name)
		}
		seen[key] = true
	}
	return nil
}
