package backdrop

// videoRequest is the body for the video-generation endpoint.
type videoRequest struct {
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"duration_seconds"`
	Resolution  string `json:"resolution"`
	Loop        bool   `json:"loop"`
}

// videoResponse acknowledges a new video job.
type videoResponse struct {
	JobID string `json:"job_id"`
	Error string `json:"error,omitempty"`
}

// jobStatusResponse is the polling answer for a video job.
type jobStatusResponse struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Job statuses reported by the video API.
const (
	statusQueued     = "queued"
	statusProcessing = "processing"
	statusSucceeded  = "succeeded"
	statusFailed     = "failed"
)
