package dto

// GenerateContentRequest asks for a 30-day content calendar.
type GenerateContentRequest struct {
	Industry       string   `json:"industry" binding:"required,max=200"`
	SelectedTopics []string `json:"selected_topics" binding:"required,min=1,max=10,dive,required,max=200"`
	BrandTone      string   `json:"brand_tone,omitempty" binding:"omitempty,max=200"`
	CallToAction   string   `json:"call_to_action,omitempty" binding:"omitempty,max=500"`
}

// GenerateScriptsRequest asks for 30 day-keyed text-to-speech scripts.
type GenerateScriptsRequest struct {
	Industry       string   `json:"industry" binding:"required,max=200"`
	SelectedTopics []string `json:"selected_topics" binding:"required,min=1,max=10,dive,required,max=200"`
	BrandTone      string   `json:"brand_tone,omitempty" binding:"omitempty,max=200"`
	CallToAction   string   `json:"call_to_action,omitempty" binding:"omitempty,max=500"`
}

// GenerateResponse is returned as soon as the workflow has been dispatched.
type GenerateResponse struct {
	RequestID           int64  `json:"request_id"`
	RequestKey          string `json:"request_key"`
	Status              string `json:"status"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	MaxAttempts         int    `json:"max_attempts"`
}

// ContentStatusResponse is what the dashboard polls
type ContentStatusResponse struct {
	RequestID           int64             `json:"request_id"`
	Kind                string            `json:"kind"`
	Status              string            `json:"status"`
	CSVBase64           string            `json:"csv_base64,omitempty"`
	CSVFilename         string            `json:"csv_filename,omitempty"`
	CSVURL              string            `json:"csv_url,omitempty"`
	Scripts             map[string]string `json:"scripts,omitempty"`
	ErrorMessage        string            `json:"error_message,omitempty"`
	StartedAt           string            `json:"started_at,omitempty"`
	CompletedAt         string            `json:"completed_at,omitempty"`
	ElapsedSeconds      int               `json:"elapsed_seconds"`
	PollIntervalSeconds int               `json:"poll_interval_seconds"`
	MaxAttempts         int               `json:"max_attempts"`
}

// ContentListItem is one row of the generation history.
type ContentListItem struct {
	ID             int64    `json:"id"`
	Kind           string   `json:"kind"`
	Industry       string   `json:"industry"`
	SelectedTopics []string `json:"selected_topics"`
	Status         string   `json:"status"`
	CSVFilename    string   `json:"csv_filename,omitempty"`
	ErrorMessage   string   `json:"error_message,omitempty"`
	CreatedAt      string   `json:"created_at"`
	CompletedAt    string   `json:"completed_at,omitempty"`
}
