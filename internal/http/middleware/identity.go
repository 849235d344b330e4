// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the acting counselor. Authentication happens upstream
// (a gateway or an auth middleware that sets "counselorID" in the Gin
// context); for development and tests the X-Counselor-ID header is honored.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderCounselorID carries the acting counselor's numeric id.
	HeaderCounselorID = "X-Counselor-ID"

	// counselorIDKey is the Gin context key holding the counselor id (uint).
	counselorIDKey = "counselorID"
)

// CounselorIdentity stores the counselor id from X-Counselor-ID in the Gin
// context unless an upstream middleware already did. A malformed header is
// rejected with 400; an absent header leaves the request anonymous.
func CounselorIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CounselorIDFrom(c); ok {
			c.Next()
			return
		}
		raw := strings.TrimSpace(c.GetHeader(HeaderCounselorID))
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_counselor_id",
				"message":    "X-Counselor-ID must be a positive integer",
			})
			return
		}
		c.Set(counselorIDKey, uint(id))
		c.Next()
	}
}

// CounselorIDFrom returns the counselor id resolved for this request.
func CounselorIDFrom(c *gin.Context) (uint, bool) {
	v, ok := c.Get(counselorIDKey)
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case uint:
		return id, id > 0
	case int:
		return uint(id), id > 0
	case string:
		n, err := strconv.ParseUint(id, 10, 64)
		return uint(n), err == nil && n > 0
	}
	return 0, false
}

// ClientKey identifies the caller for per-client state such as rate-limit
// buckets and idempotency records: "counselor:<id>" when a counselor is
// known, otherwise "ip:<addr>".
func ClientKey(c *gin.Context) string {
	if id, ok := CounselorIDFrom(c); ok {
		return "counselor:" + strconv.FormatUint(uint64(id), 10)
	}
	return "ip:" + c.ClientIP()
}
