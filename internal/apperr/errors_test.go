package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByKind(t *testing.T) {
	err := NotFoundf("item not found")
	wrapped := fmt.Errorf("load: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrForbidden))
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, "NotFound: item not found", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		NotFoundf("x"):     http.StatusNotFound,
		Forbiddenf("x"):    http.StatusForbidden,
		InvalidStatef("x"): http.StatusConflict,
		Validationf("x"):   http.StatusBadRequest,
		Conflictf("x"):     http.StatusConflict,
		Insufficientf("x"): http.StatusUnprocessableEntity,
		Unauthorizedf("x"): http.StatusUnauthorized,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), string(err.Kind))
	}
}
