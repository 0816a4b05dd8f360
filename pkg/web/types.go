// Package web provides HTTP request and response types for the video research API.
package web

// CredentialRequest carries an optional TwelveLabs key. An empty key selects
// the process-wide key.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// ValidateKeyRequest checks a TwelveLabs key by listing its indexes.
type ValidateKeyRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type ListVideosRequest struct {
	APIKey  string `json:"api_key"`
	IndexID string `json:"index_id" validate:"required"`
}

type AnalyzeRequest struct {
	APIKey string `json:"api_key"`
	Prompt string `json:"prompt"  validate:"required"`
}

type ResearchRequest struct {
	APIKey string `json:"api_key"`
	Query  string `json:"query"   validate:"required"`
}

// StepRequest drives one step of the workflow at a time.
type StepRequest struct {
	Step           string `json:"step"               validate:"required,oneof=get_indexes get_videos analyze_video sonar_research sonar_research_stream"`
	APIKey         string `json:"twelvelabs_api_key"`
	IndexID        string `json:"index_id"`
	VideoID        string `json:"video_id"`
	AnalysisPrompt string `json:"analysis_prompt"`
	ResearchQuery  string `json:"research_query"`
}

type StepResponse struct {
	Success  bool   `json:"success"`
	Step     string `json:"step"`
	Data     any    `json:"data"`
	IndexID  string `json:"index_id,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	NextStep string `json:"next_step"`
}

type VerifyTokenRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// ServiceInfo describes the service and its endpoints.
type ServiceInfo struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
	Version   string `json:"version"`
}

type KeyStatusResponse struct {
	Success                 bool `json:"success"`
	Configured              bool `json:"configured"`
	EnvironmentKeyAvailable bool `json:"environment_key_available"`
}
