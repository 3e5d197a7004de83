package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorEnvelopeShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithBadRequest(c, "bad input", gin.H{"field": "email"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		ErrorCode string            `json:"error_code"`
		Message   string            `json:"message"`
		Details   map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.ErrorCode != "bad_request" || body.Message != "bad input" {
		t.Fatalf("envelope = %+v", body)
	}
	if body.Details["field"] != "email" {
		t.Fatalf("details = %+v", body.Details)
	}
}

func TestErrorEnvelopeOmitsEmptyDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithNotFound(c, "missing")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "details") {
		t.Fatalf("nil details must be omitted: %s", w.Body.String())
	}
}
