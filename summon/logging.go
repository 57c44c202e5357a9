package summon

import (
	"net/http"
	"strconv"
)

const defaultMaxPayloadLogBytes = 1024

func (c *client) maxPayloadLogBytes() int {
	if c.config.MaxPayloadLogBytes > 0 {
		return c.config.MaxPayloadLogBytes
	}
	return defaultMaxPayloadLogBytes
}

func (c *client) preview(body []byte) (preview []byte, truncated bool) {
	limit := c.maxPayloadLogBytes()
	if len(body) > limit {
		return body[:limit], true
	}
	return body, false
}

// logDispatch records the start of a Summon call.
func (c *client) logDispatch(rawURL, method string) {
	c.logger.Info().
		Str("direction", "outbound").
		Str("method", method).
		Str("url", rawURL).
		Msg("summon request")
}

// logAttempt writes headers and body of an attempt when payload logging is on.
func (c *client) logAttempt(req *http.Request, body []byte, attempt int, requestID string) {
	if !c.config.LogPayloads {
		return
	}
	event := c.logger.Debug().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("attempt", attempt).
		Str("request_id", requestID).
		Interface("headers", req.Header)
	if len(body) > 0 {
		preview, truncated := c.preview(body)
		event = event.
			Int("body_size", len(body)).
			Str("body_truncated", strconv.FormatBool(truncated)).
			Bytes("body_preview", preview)
	}
	event.Msg("summon attempt")
}

// logAttemptFailure is the observer for failed attempts. It runs for every
// failure, including the last one, before any retry decision is made.
func (c *client) logAttemptFailure(rawURL string, attempt, maxAttempts int, err error) {
	event := c.logger.Warn().
		Str("url", rawURL).
		Int("attempt", attempt).
		Int("max_attempts", maxAttempts).
		Str("error_type", errorTypeOf(err)).
		Err(err)
	if resp, ok := ResponseFromError(err); ok {
		preview, _ := c.preview(resp.Body)
		event = event.
			Int("status", resp.StatusCode).
			Str("status_text", resp.Status).
			Int("body_size", len(resp.Body)).
			Bytes("body_preview", preview)
	}
	event.Msgf("summon attempt %d/%d failed", attempt, maxAttempts)
}

// logResponse records the final response of a successful call.
func (c *client) logResponse(resp *Response, requestID string) {
	event := c.logger.Debug().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Stats.ElapsedTime).
		Int64("call_count", resp.Stats.CallCount).
		Bool("cached", resp.Stats.Cached).
		Str("request_id", requestID)
	if len(resp.Body) > 0 {
		event = event.Int("body_size", len(resp.Body))
		if c.config.LogPayloads {
			preview, truncated := c.preview(resp.Body)
			event = event.
				Str("body_truncated", strconv.FormatBool(truncated)).
				Bytes("body_preview", preview)
		}
	}
	event.Msg("summon response")
}
