package wordpress

// Wire types for the WordPress REST API (wp/v2).

type apiCategory struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Parent int    `json:"parent"`
}

type apiTag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiMedia struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// apiError is the error envelope WordPress returns with non-2xx responses.
// Data.TermID is populated for the "term_exists" duplicate-tag case.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TermID int `json:"term_id"`
	} `json:"data"`
}

type postPayload struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Categories    []int  `json:"categories"`
	Tags          []int  `json:"tags,omitempty"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
	Status        string `json:"status"`
	Date          string `json:"date,omitempty"`
}
