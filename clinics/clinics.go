package clinics

// Clinic is a medical facility listed in the app.
type Clinic struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Address      string   `json:"address"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`
	Description  string   `json:"description,omitempty"`
	WorkingHours string   `json:"working_hours,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// AISearchRequest is a natural language clinic search. City or coordinates narrow
// the results; all of them are optional.
type AISearchRequest struct {
	Query    string   `json:"query"`
	CityName string   `json:"city_name,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
}

// AISearchResult explains how the backend interpreted the query.
type AISearchResult struct {
	Success           bool     `json:"success"`
	Explanation       string   `json:"explanation"`
	MatchedCategories []string `json:"matched_categories"`
	Keywords          []string `json:"keywords"`
	Clinics           []Clinic `json:"clinics"`
	TotalFound        int      `json:"total_found"`
}
