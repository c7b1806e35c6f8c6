package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ProjectsResponse is the response body for GET /api/v1/projects.
type ProjectsResponse struct {
	Projects []string `json:"projects"`
}

// ProjectResponse is the response body for GET /api/v1/projects/:id.
type ProjectResponse struct {
	ProjectID string   `json:"project_id"`
	Sections  []string `json:"sections"`
	Document  string   `json:"document"`
}

// SectionResponse is the response body for
// GET /api/v1/projects/:id/sections/:name.
type SectionResponse struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}
