package apiclient

import (
	"bytes"
	"encoding/json"
)

// Page is a list response. Some endpoints return a bare JSON array and others a
// paginated object; both decode into Page. A null body decodes to an empty page.
type Page[T any] struct {
	Results  []T     `json:"results"`
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*p = Page[T]{}
		return nil
	case data[0] == '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*p = Page[T]{Results: items, Count: len(items)}
		return nil
	}

	var out rawPage[T]
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = Page[T](out)
	return nil
}

// rawPage has Page's fields without its UnmarshalJSON.
type rawPage[T any] Page[T]

// HasMore reports whether the backend has another page.
func (p *Page[T]) HasMore() bool {
	return p.Next != nil && *p.Next != ""
}
