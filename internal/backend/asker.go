package backend

import "context"

// Dataset types understood by the /ask endpoint.
const (
	DatasetDefault = "default"
	DatasetCustom  = "custom"
)

// Asker is the seam between the request gateway and the analysis backend.
type Asker interface {
	Ask(ctx context.Context, req AskRequest) (*AskResponse, error)
}

// AskRequest is the /ask form payload.
type AskRequest struct {
	Question    string
	DatasetType string
	// FileName and File are sent only for custom datasets. File is borrowed,
	// never retained after Ask returns.
	FileName string
	File     []byte
}

// AskResponse is the /ask response body.
type AskResponse struct {
	Answer  string  `json:"answer"`
	Success bool    `json:"success"`
	PlotURL *string `json:"plot_url"`
	// RequestID is captured from response headers when present.
	RequestID string `json:"-"`
}

// PlotPath returns the server-relative plot path, empty when none.
func (r *AskResponse) PlotPath() string {
	if r == nil || r.PlotURL == nil {
		return ""
	}
	return *r.PlotURL
}

// Health is the /health response body.
type Health struct {
	Status                 string `json:"status"`
	GoogleAPIKeyConfigured *bool  `json:"google_api_key_configured,omitempty"`
	DefaultCSVExists       *bool  `json:"default_csv_exists,omitempty"`
	CSVPath                string `json:"csv_path,omitempty"`
}
