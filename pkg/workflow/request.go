package workflow

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	msgCredentialRequired = "TwelveLabs API key is required"
	msgIDsRequired        = "Index ID and Video ID are required"
	msgQueryRequired      = "Research query is required"
	msgValidationFailed   = "Invalid workflow request"
)

// Request starts one workflow run.
type Request struct {
	Credential     string `json:"twelvelabs_api_key,omitempty" validate:"required"`
	IndexID        string `json:"index_id" validate:"required"`
	VideoID        string `json:"video_id" validate:"required"`
	AnalysisPrompt string `json:"analysis_prompt,omitempty"`
	ResearchQuery  string `json:"research_query" validate:"required"`
}

func (r Request) normalized() Request {
	r.Credential = strings.TrimSpace(r.Credential)
	r.IndexID = strings.TrimSpace(r.IndexID)
	r.VideoID = strings.TrimSpace(r.VideoID)
	r.AnalysisPrompt = strings.TrimSpace(r.AnalysisPrompt)
	r.ResearchQuery = strings.TrimSpace(r.ResearchQuery)

	return r
}

// validationMessage returns the client-facing message for the first missing
// field, or "" when the request is complete.
func validationMessage(validate *validator.Validate, r Request) string {
	err := validate.Struct(r)
	if err == nil {
		return ""
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return msgValidationFailed
	}

	switch fieldErrs[0].StructField() {
	case "Credential":
		return msgCredentialRequired
	case "IndexID", "VideoID":
		return msgIDsRequired
	case "ResearchQuery":
		return msgQueryRequired
	default:
		return msgValidationFailed
	}
}
