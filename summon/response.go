package summon

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"
)

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && IsSuccessStatus(r.StatusCode)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %d response: %w", r.StatusCode, err)
	}
	return nil
}

func (r *Response) Text() string {
	return string(r.Body)
}

// IsJSON reports whether the Content-Type header names a JSON media type.
func (r *Response) IsJSON() bool {
	mediaType, _, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// ErrorMessage extracts a human readable failure reason: the "error" field of
// a JSON body, "API returned <status>" for JSON without one, and the raw text
// otherwise.
func (r *Response) ErrorMessage() string {
	if r.IsJSON() {
		var payload struct {
			Error any `json:"error"`
		}
		if err := json.Unmarshal(r.Body, &payload); err == nil && payload.Error != nil {
			if s, ok := payload.Error.(string); ok {
				return s
			}
			return fmt.Sprint(payload.Error)
		}
		return fmt.Sprintf("API returned %d", r.StatusCode)
	}
	return "Non-JSON response body: " + r.Text()
}

func (r *Response) clone() *Response {
	out := *r
	out.Body = slices.Clone(r.Body)
	out.Headers = r.Headers.Clone()
	return &out
}

func newResponse(resp *http.Response, body []byte) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp),
		Body:       body,
		Headers:    resp.Header.Clone(),
	}
}

// statusText strips the numeric code from resp.Status ("500 Internal Server
// Error" becomes "Internal Server Error").
func statusText(resp *http.Response) string {
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
