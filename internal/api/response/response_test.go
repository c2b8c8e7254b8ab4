// internal/api/response/response_test.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newthinker/tradelab/internal/core"
)

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"hello": "world"}

	JSON(w, http.StatusOK, data)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected application/json content type")
	}

	var resp SuccessResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data == nil {
		t.Error("expected data in response")
	}
	if resp.Meta.Timestamp.IsZero() {
		t.Error("expected timestamp in meta")
	}
}

func TestError_WithCoreError(t *testing.T) {
	w := httptest.NewRecorder()
	err := core.ErrConfigInvalid

	Error(w, http.StatusBadRequest, err)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "CONFIG_INVALID" {
		t.Errorf("expected CONFIG_INVALID, got %s", resp.Error.Code)
	}
}

func TestError_WithStandardError(t *testing.T) {
	w := httptest.NewRecorder()
	err := core.WrapError(core.ErrNoData, nil)

	Error(w, http.StatusNotFound, err)

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "NO_DATA" {
		t.Errorf("expected NO_DATA, got %s", resp.Error.Code)
	}
}

func TestError_PlainErrorHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusInternalServerError, errors.New("db password leaked"))

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error.Code != "INTERNAL_ERROR" || resp.Error.Cause != "" {
		t.Errorf("unexpected error detail %+v", resp.Error)
	}
}

func TestFail_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.WrapError(core.ErrInvalidRequest, errors.New("bad json")), http.StatusBadRequest},
		{core.ErrInsufficientData, http.StatusBadRequest},
		{core.ErrUnauthorized, http.StatusUnauthorized},
		{core.ErrJobNotFound, http.StatusNotFound},
		{core.WrapError(core.ErrNoData, nil), http.StatusNotFound},
		{core.ErrCollectorTimeout, http.StatusGatewayTimeout},
		{core.WrapError(core.ErrCollectorFailed, errors.New("all down")), http.StatusBadGateway},
		{core.ErrAccountUnavailable, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		Fail(w, tt.err)
		if w.Code != tt.want {
			t.Errorf("Fail(%v): expected %d, got %d", tt.err, tt.want, w.Code)
		}
	}
}
