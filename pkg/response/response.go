package response

import (
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/aldor007/redisres/pkg/monitoring"
)

const (
	// HeaderContentType name of Content-Type header
	HeaderContentType = "content-type"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is helper struct for JSON answers of diagnostics endpoints
type Response struct {
	StatusCode    int         // status code of response
	Headers       http.Header // headers for response
	ContentLength int64       // length of body
	errorValue    error       // error value
	debug         bool        // debug flag

	body []byte
}

// NewNoContent create response object without content
func NewNoContent(statusCode int) *Response {
	return &Response{StatusCode: statusCode, Headers: make(http.Header)}
}

// NewBuf create response object from []byte
func NewBuf(statusCode int, body []byte) *Response {
	res := NewNoContent(statusCode)
	res.setBodyBytes(body)
	return res
}

// NewJSON create response object with v encoded as JSON body
func NewJSON(statusCode int, v interface{}) *Response {
	buf, err := json.Marshal(v)
	if err != nil {
		return NewError(500, err)
	}

	res := NewBuf(statusCode, buf)
	res.SetContentType("application/json")
	return res
}

// NewError create response object from error
func NewError(statusCode int, err error) *Response {
	res := NewBuf(statusCode, []byte(`{"message": "error"}`))
	res.errorValue = err
	res.SetContentType("application/json")
	return res
}

// SetContentType update content type header of response
func (r *Response) SetContentType(contentType string) *Response {
	r.Headers.Set(HeaderContentType, contentType)
	return r
}

// Set update response headers
func (r *Response) Set(headerName string, headerValue string) {
	r.Headers.Set(headerName, headerValue)
}

// SetDebug makes error responses carry error message
func (r *Response) SetDebug(debug bool) *Response {
	r.debug = debug
	return r
}

func (r *Response) setBodyBytes(body []byte) {
	r.body = body
	r.ContentLength = int64(len(body))
}

// Body returns response body
func (r *Response) Body() []byte {
	return r.body
}

// HasError check if response contains error
func (r *Response) HasError() bool {
	return r.errorValue != nil
}

// Error returns error instance
func (r *Response) Error() error {
	return r.errorValue
}

// Send write response to client
func (r *Response) Send(w http.ResponseWriter) error {
	r.writeDebug()

	for headerName, headerValue := range r.Headers {
		w.Header().Set(headerName, headerValue[0])
	}

	if r.ContentLength == 0 {
		w.WriteHeader(r.StatusCode)
		return nil
	}

	w.Header().Set("content-length", strconv.FormatInt(r.ContentLength, 10))
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.body)
	if err != nil {
		monitoring.Log().Warn("response write error", zap.Int("status", r.StatusCode), zap.Error(err))
	}

	return err
}

func (r *Response) writeDebug() {
	if !r.debug || r.errorValue == nil {
		return
	}

	body := map[string]string{"message": r.errorValue.Error()}
	buf, err := json.Marshal(body)
	if err != nil {
		return
	}
	r.setBodyBytes(buf)
	r.SetContentType("application/json")
}
