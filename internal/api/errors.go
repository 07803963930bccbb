package api

import (
	"errors"
	"net/http"

	"github.com/nao1215/crawlscope/internal/fetch"
	"github.com/nao1215/crawlscope/internal/job"
	"github.com/nao1215/crawlscope/internal/parse"
	"github.com/nao1215/crawlscope/internal/urlnorm"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidURL     = "INVALID_URL"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeJobNotFound    = "JOB_NOT_FOUND"
	CodeJobNotReady    = "JOB_NOT_READY"
	CodeFetchFailed    = "FETCH_FAILED"
	CodeParseFailed    = "PARSE_FAILED"
	CodeInternal       = "INTERNAL"
)

// errInvalidRequest marks malformed or out-of-range request bodies.
var errInvalidRequest = errors.New("invalid request")

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps err to a status code and an error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, urlnorm.ErrInvalidURL):
		return http.StatusBadRequest, CodeInvalidURL
	case errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, job.ErrJobNotFound):
		return http.StatusNotFound, CodeJobNotFound
	case errors.Is(err, job.ErrJobNotReady):
		return http.StatusConflict, CodeJobNotReady
	case errors.Is(err, fetch.ErrFetchFailed):
		return http.StatusInternalServerError, CodeFetchFailed
	case errors.Is(err, parse.ErrParseFailed):
		return http.StatusInternalServerError, CodeParseFailed
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
