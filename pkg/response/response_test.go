package response

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewJSON(t *testing.T) {
	res := NewJSON(200, map[string]int{"major": 7})

	assert.Equal(t, res.StatusCode, 200)
	assert.Equal(t, res.Headers.Get(HeaderContentType), "application/json")
	assert.JSONEq(t, `{"major": 7}`, string(res.Body()))
	assert.False(t, res.HasError())
}

func TestNewJSON_Unsupported(t *testing.T) {
	res := NewJSON(200, make(chan int))

	assert.Equal(t, res.StatusCode, 500)
	assert.True(t, res.HasError())
}

func TestNewError(t *testing.T) {
	res := NewError(404, errors.New("resource not found"))

	assert.Equal(t, res.StatusCode, 404)
	assert.True(t, res.HasError())
	assert.Equal(t, res.Error().Error(), "resource not found")
	assert.JSONEq(t, `{"message": "error"}`, string(res.Body()))
}

func TestResponse_Send(t *testing.T) {
	res := NewJSON(201, []string{"a", "b"})
	res.Set("x-header", "1")

	w := httptest.NewRecorder()
	assert.Nil(t, res.Send(w))

	assert.Equal(t, w.Code, 201)
	assert.Equal(t, w.Header().Get("X-Header"), "1")
	assert.Equal(t, w.Header().Get("Content-Length"), "9")
	assert.JSONEq(t, `["a","b"]`, w.Body.String())
}

func TestResponse_SendNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	assert.Nil(t, NewNoContent(204).Send(w))

	assert.Equal(t, w.Code, 204)
	assert.Empty(t, w.Body.String())
}

func TestResponse_SendDebug(t *testing.T) {
	w := httptest.NewRecorder()
	res := NewError(502, errors.New("dial tcp: connection refused")).SetDebug(true)
	assert.Nil(t, res.Send(w))

	assert.Equal(t, w.Code, 502)
	assert.JSONEq(t, `{"message": "dial tcp: connection refused"}`, w.Body.String())
}
