package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-lms/core"
)

func Test_bindOrdering(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []core.DBOrdering
	}{
		{name: "none", query: "", want: nil},
		{name: "empty", query: "?ordering=", want: nil},
		{name: "single", query: "?ordering=title", want: []core.DBOrdering{{Field: "title", Ascending: true}}},
		{
			name: "descending and spaces", query: "?ordering=-created_at,%20title,,-",
			want: []core.DBOrdering{{Field: "created_at", Ascending: false}, {Field: "title", Ascending: true}},
		},
	}
	e := echo.New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/courses"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, bindOrdering(ctx))
		})
	}
}
