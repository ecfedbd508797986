package controller

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/failure"
)

// bindJSON decodes the request body into dst. An empty or undecodable body is Invalid; field
// rules are checked by the services.
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return failure.New(failure.KindInvalid, "payload not provided")
		}
		return failure.Wrap(failure.KindInvalid, err, "malformed JSON payload")
	}
	return nil
}

// pageNumber reads ?pageNumber= (or ?page=). Absent or non-numeric values select page 1.
func pageNumber(c *gin.Context) int64 {
	raw := c.Query("pageNumber")
	if raw == "" {
		raw = c.Query("page")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 1
	}
	return n
}

// int64Param parses an integer from a path or query value. Empty is 0.
func int64Param(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, failure.Newf(failure.KindInvalid, "%s must be an integer", name).
			WithDetails(map[string]interface{}{name: raw})
	}
	return n, nil
}
