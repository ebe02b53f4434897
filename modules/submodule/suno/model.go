package suno

// generateRequest is the body for the task-creation endpoint.
type generateRequest struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	Instrumental bool   `json:"instrumental"`
	CustomMode   bool   `json:"customMode"`
}

// generateResponse wraps the API's standard envelope around a new task id.
type generateResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// recordInfoResponse is the polling answer for a task.
type recordInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Status   string `json:"status"`
		Response struct {
			SunoData []trackData `json:"sunoData"`
		} `json:"response"`
		ErrorMessage string `json:"errorMessage"`
	} `json:"data"`
}

// trackData is one generated track inside a completed task.
type trackData struct {
	AudioURL string  `json:"audioUrl"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// Task statuses reported by the API.
const (
	statusSuccess        = "SUCCESS"
	statusCreateFailed   = "CREATE_TASK_FAILED"
	statusGenerateFailed = "GENERATE_AUDIO_FAILED"
	statusCallbackFailed = "CALLBACK_EXCEPTION"
	statusSensitive      = "SENSITIVE_WORD_ERROR"
)

// trackPayload is the opaque reference handed to the poller between the
// completed poll and the download. It carries the metadata the download
// step needs to build the final asset.
type trackPayload struct {
	URL      string  `json:"url"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}
