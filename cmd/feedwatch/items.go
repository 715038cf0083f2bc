package main

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/dshills/feedcore/internal/collection/tracking"
)

// extractor turns a JSON document into list items.
type extractor struct {
	// Path selects the array in the document.
	Path string
	// Key selects the identity inside each element. Empty means the
	// whole element.
	Key string
	// Fold makes items the string value of each element, identified
	// case-insensitively.
	Fold bool
}

// read loads the items of the JSON file at name.
func (e extractor) read(name string) ([]string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return e.parse(name, data)
}

func (e extractor) parse(name string, data []byte) ([]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%s: invalid JSON", name)
	}
	path := e.Path
	if path == "" {
		path = "@this"
	}
	list := gjson.GetBytes(data, path)
	if !list.Exists() {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%s: %q is not an array", name, path)
	}

	var items []string
	list.ForEach(func(_, v gjson.Result) bool {
		if e.Fold {
			items = append(items, v.String())
		} else {
			items = append(items, v.Raw)
		}
		return true
	})
	return items, nil
}

func (e extractor) comparer() tracking.ItemComparer[string] {
	switch {
	case e.Fold:
		return tracking.FoldedStrings()
	case e.Key != "":
		key := e.Key
		return tracking.ByKey(func(raw string) string {
			return gjson.Get(raw, key).Raw
		}, nil)
	default:
		return tracking.Equality[string]()
	}
}
