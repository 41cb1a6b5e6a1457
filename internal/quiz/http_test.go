package quiz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// The library responds service_unavailable when no database is configured, so
// a 503 proves the method reached the handler rather than being rejected by
// the dispatch.
func TestQuizByIDMethodDispatch(t *testing.T) {
	h := NewHTTPHandlers(nil, nil, nil, zerolog.Nop())

	tests := map[string]struct {
		method string
		want   int
	}{
		"get reaches the library":    {method: http.MethodGet, want: http.StatusServiceUnavailable},
		"delete reaches the library": {method: http.MethodDelete, want: http.StatusServiceUnavailable},
		"post is rejected":           {method: http.MethodPost, want: http.StatusMethodNotAllowed},
		"put is rejected":            {method: http.MethodPut, want: http.StatusMethodNotAllowed},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/v1/quizzes/"+uuid.NewString(), nil)
			rec := httptest.NewRecorder()
			h.QuizByID(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
