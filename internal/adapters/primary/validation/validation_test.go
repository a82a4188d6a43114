package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	t.Run("empty query is the default view", func(t *testing.T) {
		f, err := ParseFilter(httptest.NewRequest(http.MethodGet, "/tickets", nil))
		require.NoError(t, err)
		assert.Equal(t, domain.Filter{}, f)
	})

	t.Run("all parameters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/tickets?status=in_progress&priority=HIGH&submitter=+ann+&location=Lab&completed=true&sort=Priority&order=desc", nil)

		f, err := ParseFilter(req)
		require.NoError(t, err)
		assert.Equal(t, domain.Filter{
			Status:        domain.StatusInProgress,
			Priority:      domain.PriorityHigh,
			Submitter:     "ann",
			Location:      "Lab",
			ShowCompleted: true,
			Sort:          domain.SortPriority,
			Descending:    true,
		}, f)
	})

	t.Run("bad values are reported per field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/tickets?status=later&priority=urgent&archived=maybe&sort=size&order=up", nil)

		_, err := ParseFilter(req)
		var verrs *apperrors.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		for _, field := range []string{"status", "priority", "archived", "sort", "order"} {
			assert.Contains(t, verrs.Errors, field)
		}
	})
}

func TestDecodeAndValidate(t *testing.T) {
	type body struct {
		Title string `json:"title"`
	}

	t.Run("decodes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"x"}`))
		got, err := DecodeAndValidate[body](req)
		require.NoError(t, err)
		assert.Equal(t, "x", got.Title)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"titel":"x"}`))
		_, err := DecodeAndValidate[body](req)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Required("title", " ").
		MaxLength("location", "abcdef", 3).
		Email("submitted_by", "nope").
		OneOf("order", "asc", []string{"asc", "desc"})

	require.Error(t, v.Err())
	assert.Len(t, v.Errors().Errors, 3)
	assert.NoError(t, NewValidator().Required("title", "ok").Err())
}

func TestParseIntQueryParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x&neg=-1", nil)
	assert.Equal(t, 5, ParseIntQueryParam(req, "limit", 10))
	assert.Equal(t, 10, ParseIntQueryParam(req, "bad", 10))
	assert.Equal(t, 10, ParseIntQueryParam(req, "neg", 10))
	assert.Equal(t, 10, ParseIntQueryParam(req, "missing", 10))
}
