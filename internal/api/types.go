package api

// AddRouteRequest is the body of POST /api/routes.
type AddRouteRequest struct {
	Type     string `json:"type"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
	Sublevel []int  `json:"sublevel,omitempty"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status   string   `json:"status"`
	Queues   []string `json:"queues"`
	Ingested int64    `json:"ingested"`
}
