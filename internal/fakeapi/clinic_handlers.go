package fakeapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jrsteele09/zhancare-client/clinics"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultRadiusKm = 50
)

type paginated[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// paginate slices items by the page and page_size query parameters.
func paginate[T any](r *http.Request, items []T) (paginated[T], error) {
	q := r.URL.Query()
	size, err := positiveInt(q.Get("page_size"), defaultPageSize)
	if err != nil {
		return paginated[T]{}, fmt.Errorf("page_size: %w", err)
	}
	size = min(size, maxPageSize)
	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		return paginated[T]{}, fmt.Errorf("page: %w", err)
	}

	out := paginated[T]{Count: len(items), Results: []T{}}
	start := (page - 1) * size
	if start < len(items) {
		out.Results = items[start:min(start+size, len(items))]
	}
	if start+size < len(items) {
		out.Next = pageURL(r, page+1)
	}
	if page > 1 {
		out.Previous = pageURL(r, page-1)
	}
	return out, nil
}

func pageURL(r *http.Request, page int) *string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

func positiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	return n, nil
}

func (s *Server) handleListClinics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := s.data.listClinics()

	if q.Has("lat") || q.Has("lng") {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			writeError(w, http.StatusBadRequest, "lat and lng must be valid coordinates.")
			return
		}
		radius := float64(defaultRadiusKm)
		if raw := q.Get("radius"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v <= 0 {
				writeError(w, http.StatusBadRequest, "radius must be a positive number.")
				return
			}
			radius = v
		}
		list = s.data.nearestClinics(lat, lng, radius)
	}

	page, err := paginate(r, list)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetClinic(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	c, found := s.data.clinic(id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleAISearch matches query words against clinic names, descriptions and services.
func (s *Server) handleAISearch(w http.ResponseWriter, r *http.Request) {
	var in clinics.AISearchRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	keywords := searchKeywords(in.Query)
	if len(keywords) == 0 {
		writeFieldErrors(w, map[string][]string{"query": {"This field is required."}})
		return
	}

	candidates := s.data.listClinics()
	if in.Lat != nil && in.Lng != nil {
		candidates = s.data.nearestClinics(*in.Lat, *in.Lng, defaultRadiusKm)
	}

	result := clinics.AISearchResult{Success: true, Keywords: keywords, Clinics: []clinics.Clinic{}}
	categories := map[string]bool{}
	city := strings.ToLower(strings.TrimSpace(in.CityName))
	for _, c := range candidates {
		if city != "" && !strings.Contains(strings.ToLower(c.Address), city) {
			continue
		}
		matched := false
		for _, svc := range c.Services {
			if containsAny(strings.ToLower(svc), keywords) {
				matched = true
				if !categories[svc] {
					categories[svc] = true
					result.MatchedCategories = append(result.MatchedCategories, svc)
				}
			}
		}
		if matched || containsAny(strings.ToLower(c.Name+" "+c.Description), keywords) {
			result.Clinics = append(result.Clinics, c)
		}
	}
	result.TotalFound = len(result.Clinics)
	result.Explanation = fmt.Sprintf("Found %d clinics matching %q.", result.TotalFound, strings.Join(keywords, " "))
	writeJSON(w, http.StatusOK, result)
}

func searchKeywords(query string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		if len([]rune(f)) >= 3 {
			out = append(out, f)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
