package gradeapi

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// ZstdMiddleware decodes zstd request bodies and encodes responses for clients
// that send Accept-Encoding: zstd. Routes in skip pass through untouched; nil
// skips only the health check.
func ZstdMiddleware(skip []string) fiber.Handler {
	if skip == nil {
		skip = []string{HealthRoute}
	}

	// EncodeAll and DecodeAll are safe for concurrent use
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %s", err))
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %s", err))
	}

	return func(c *fiber.Ctx) error {
		if slices.Contains(skip, c.Path()) {
			return c.Next()
		}

		if hasToken(c.Get(fiber.HeaderContentEncoding), "zstd") {
			if err := decodeRequest(c, decoder); err != nil {
				return err
			}
		}

		if err := c.Next(); err != nil {
			return err
		}

		if hasToken(c.Get(fiber.HeaderAcceptEncoding), "zstd") {
			encodeResponse(c, encoder)
		}
		return nil
	}
}

func decodeRequest(c *fiber.Ctx, decoder *zstd.Decoder) error {
	body := c.Request().Body()
	if len(body) == 0 {
		return nil
	}

	plain, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("failed to decompress zstd data: %s", err))
	}

	c.Request().SetBody(plain)
	c.Request().Header.Del(fiber.HeaderContentEncoding)
	log.Trace().Int("compressed", len(body)).Int("size", len(plain)).Msg("zstd request decoded")
	return nil
}

func encodeResponse(c *fiber.Ctx, encoder *zstd.Encoder) {
	body := c.Response().Body()
	if len(body) == 0 {
		return
	}

	packed := encoder.EncodeAll(body, make([]byte, 0, len(body)/2))
	c.Response().SetBody(packed)
	c.Set(fiber.HeaderContentEncoding, "zstd")
	c.Append(fiber.HeaderVary, fiber.HeaderAcceptEncoding)
	log.Trace().Int("size", len(body)).Int("compressed", len(packed)).Msg("zstd response encoded")
}

// hasToken reports whether a comma separated header lists token, ignoring
// case and quality values.
func hasToken(header, token string) bool {
	for part := range strings.SplitSeq(header, ",") {
		name, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(name), token) {
			return true
		}
	}
	return false
}
