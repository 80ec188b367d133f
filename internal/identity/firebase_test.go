package identity

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestMapToolkitErr(t *testing.T) {
	throttled := &googleapi.Error{Code: http.StatusBadRequest, Message: "TOO_MANY_ATTEMPTS_TRY_LATER"}
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend down"}
	plain := errors.New("dial tcp: timeout")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"wrong password", &googleapi.Error{Code: http.StatusBadRequest, Message: "INVALID_PASSWORD"}, ErrInvalidCredentials},
		{"unknown email", &googleapi.Error{Code: http.StatusBadRequest, Message: "EMAIL_NOT_FOUND"}, ErrInvalidCredentials},
		{"weak password", &googleapi.Error{Code: http.StatusBadRequest, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}, ErrWeakPassword},
		{"throttled", throttled, throttled},
		{"server error", unavailable, unavailable},
		{"network", plain, plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapToolkitErr(tt.err))
		})
	}
}

func TestMapAuthErr(t *testing.T) {
	assert.NoError(t, mapAuthErr(nil))
	assert.Equal(t, ErrWeakPassword, mapAuthErr(errors.New("password must be a string at least 6 characters long")))
	other := errors.New("boom")
	assert.Equal(t, other, mapAuthErr(other))
}
