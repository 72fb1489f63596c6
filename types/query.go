package types

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// QueryParams is a chat turn asking the knowledge base a question.
// DocType optionally narrows the search to one document category.
type QueryParams struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"required"`
	DocType string `json:"doc_type,omitempty"`
	TopK    int    `json:"top_k,omitempty" validate:"omitempty,gte=1,lte=50"`
}

// IngestParams carries the document metadata fields of an upload request.
type IngestParams struct {
	DocType     string `json:"doc_type" form:"doc_type"`
	AccessLevel string `json:"access_level,omitempty" form:"access_level"`
	UploadedBy  string `json:"uploaded_by,omitempty" form:"uploaded_by"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QueryParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: http.StatusUnprocessableEntity,
		Errors: errors,
	}
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

// QueryResponse is what the chat collaborator gets back for one turn.
type QueryResponse struct {
	Answer     string    `json:"answer"`
	Sources    []Source  `json:"sources"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type Source struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`
}
