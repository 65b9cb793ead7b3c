package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/idempotency"
	"github.com/healtrip/healtrip-api/internal/utils"
)

const IdempotencyHeader = "Idempotency-Key"

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotent replays the first successful response for a repeated
// Idempotency-Key. Keys are scoped to the caller and to op. Requests
// without the header pass through untouched.
func Idempotent(st idempotency.Store, op string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			utils.Fail(c, utils.Validation("Idempotency-Key is too long"))
			return
		}
		id, _ := IdentityFrom(c)
		scoped := op + ":" + id.ExternalID + ":" + key

		ctx := c.Request.Context()
		prev, err := st.Begin(ctx, scoped)
		switch {
		case errors.Is(err, idempotency.ErrInProgress):
			utils.Fail(c, utils.Conflict("a request with this Idempotency-Key is still being processed"))
			return
		case err != nil:
			// cache outage must not block payments
			log.Warn("idempotency store unavailable", zap.String("op", op), zap.Error(err))
			c.Next()
			return
		case prev != nil:
			var sr storedResponse
			if err := json.Unmarshal(prev, &sr); err == nil {
				c.Header("Idempotent-Replayed", "true")
				c.Data(sr.Status, "application/json; charset=utf-8", sr.Body)
				c.Abort()
				return
			}
			log.Warn("discarding unreadable idempotent response", zap.String("op", op))
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		// the request context may already be done; finish bookkeeping regardless
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		status := w.Status()
		if status < 200 || status > 299 {
			if err := st.Release(bg, scoped); err != nil {
				log.Warn("idempotency release failed", zap.String("op", op), zap.Error(err))
			}
			return
		}
		raw, err := json.Marshal(storedResponse{Status: status, Body: w.body.Bytes()})
		if err != nil {
			_ = st.Release(bg, scoped)
			return
		}
		if err := st.Complete(bg, scoped, raw); err != nil {
			log.Warn("idempotency store failed", zap.String("op", op), zap.Error(err))
		}
	}
}
