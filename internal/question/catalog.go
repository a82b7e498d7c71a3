package question

import (
	"fmt"
	"strings"
)

// Test is one entry of the catalog of recognized test identifiers.
type Test struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Catalog is built once at startup and never mutated afterwards, so it is
// safe to share between requests without locking.
type Catalog struct {
	tests []Test
	index map[string]int
}

var defaultTests = []Test{
	{ID: "test1", Title: "NACC Exam 1"},
	{ID: "test2", Title: "NACC Exam 2"},
	{ID: "test3", Title: "NACC Exam 3"},
	{ID: "test4", Title: "NACC Exam 4"},
	{ID: "test5", Title: "NACC Exam 5"},
	{ID: "test6", Title: "NACC Exam 6"},
	{ID: "test7", Title: "NACC Exam 7"},
	{ID: "test8", Title: "NACC Exam 8"},
	{ID: "test9", Title: "NACC Exam 9"},
	{ID: "test10", Title: "NACC Exam 10"},
	{ID: "test11", Title: "Questions 1 to 200 of 800"},
	{ID: "test12", Title: "Questions 201 to 400 of 800"},
	{ID: "test13", Title: "Questions 401 to 600 of 800"},
	{ID: "test14", Title: "Questions 601 to 800 of 800"},
}

func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(defaultTests)
	return c
}

func NewCatalog(tests []Test) (*Catalog, error) {
	c := &Catalog{
		tests: make([]Test, 0, len(tests)),
		index: make(map[string]int, len(tests)),
	}
	for _, t := range tests {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog: empty test id")
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate test id %q", id)
		}
		title := strings.TrimSpace(t.Title)
		if title == "" {
			title = id
		}
		c.index[id] = len(c.tests)
		c.tests = append(c.tests, Test{ID: id, Title: title})
	}
	if len(c.tests) == 0 {
		return nil, fmt.Errorf("catalog: no tests configured")
	}
	return c, nil
}

// ParseCatalog reads a comma separated list of "id" or "id=Title" entries.
// An empty value yields the default catalog.
func ParseCatalog(raw string) (*Catalog, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCatalog(), nil
	}
	parts := strings.Split(raw, ",")
	tests := make([]Test, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, title, _ := strings.Cut(p, "=")
		if title == "" {
			if d, ok := DefaultCatalog().Lookup(strings.TrimSpace(id)); ok {
				title = d.Title
			}
		}
		tests = append(tests, Test{ID: id, Title: title})
	}
	return NewCatalog(tests)
}

func (c *Catalog) Has(testID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[testID]
	return ok
}

func (c *Catalog) Lookup(testID string) (Test, bool) {
	if c == nil {
		return Test{}, false
	}
	i, ok := c.index[testID]
	if !ok {
		return Test{}, false
	}
	return c.tests[i], true
}

func (c *Catalog) Tests() []Test {
	if c == nil {
		return nil
	}
	return append([]Test(nil), c.tests...)
}
