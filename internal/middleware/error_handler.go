package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"unicarbon-backend/internal/domain"
	"unicarbon-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrorHandler returns the global error handler. Saga errors are rendered through
// response.FromError; anything else uses the fiber error code. 5xx responses are appended
// to the health error log when Redis is available.
func ErrorHandler(rdb *redis.Client) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			if rdb != nil && response.StatusFor(domain.KindOf(err)) >= fiber.StatusInternalServerError {
				RecordError(context.Background(), rdb, c.Method(), c.OriginalURL(), err.Error())
			}
			return response.FromError(c, err)
		}
		if fe.Code >= fiber.StatusInternalServerError {
			log.Error().Str("trace_id", GetTraceID(c)).Err(err).Msg("Request failed")
			if rdb != nil {
				RecordError(context.Background(), rdb, c.Method(), c.OriginalURL(), fe.Message)
			}
		}
		return response.Error(c, fe.Message, fe.Code, nil)
	}
}

// RecordError pushes an entry onto the capped error log shown by /health/errors.
func RecordError(ctx context.Context, rdb *redis.Client, method, path, message string) {
	entry := map[string]interface{}{
		"time":    time.Now().UTC(),
		"method":  method,
		"path":    path,
		"message": message,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return
	}
	pipe := rdb.TxPipeline()
	pipe.LPush(ctx, KeyErrorLog, b)
	pipe.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1)
	_, _ = pipe.Exec(ctx)
}
