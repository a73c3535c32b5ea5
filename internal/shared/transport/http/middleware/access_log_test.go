package middleware

import (
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"Chronicle/internal/shared/transport"
	"Chronicle/modules/kit/logx"
)

func serve(t *testing.T, handler gin.HandlerFunc, header string) []observer.LoggedEntry {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	e := gin.New()
	e.Use(AccessLog(logx.NewZapLogger(zap.New(core))))
	e.GET("/x", handler)

	req := httptest.NewRequest(nethttp.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(SessionHeader, header)
	}
	e.ServeHTTP(httptest.NewRecorder(), req)
	return logs.All()
}

func field(e observer.LoggedEntry, key string) (any, bool) {
	v, ok := e.ContextMap()[key]
	return v, ok
}

func TestSettledResultWins(t *testing.T) {
	entries := serve(t, func(c *gin.Context) {
		transport.SetBizCode(c.Request.Context(), transport.Rejected)
		c.JSON(nethttp.StatusOK, gin.H{"code": transport.Rejected})
	}, "s1")
	if len(entries) != 1 {
		t.Fatalf("want one access line, got %d", len(entries))
	}
	if v, _ := field(entries[0], "session_id"); v != "s1" {
		t.Fatalf("session_id = %v", v)
	}
	if v, _ := field(entries[0], "result"); v != "failure" {
		t.Fatalf("result = %v", v)
	}
}

func TestUnsettledRequestUsesStatus(t *testing.T) {
	entries := serve(t, func(c *gin.Context) { c.Status(nethttp.StatusNoContent) }, "")
	if len(entries) != 1 {
		t.Fatalf("want one access line, got %d", len(entries))
	}
	if v, _ := field(entries[0], "result"); v != "success" {
		t.Fatalf("result = %v", v)
	}
	if _, ok := field(entries[0], "session_id"); ok {
		t.Fatalf("no session header was sent")
	}
}

func TestStatusCode(t *testing.T) {
	cases := map[int]transport.BizCode{200: transport.OK, 204: transport.OK, 404: transport.InvalidParam, 502: transport.SystemError}
	for status, want := range cases {
		if got := statusCode(status); got != want {
			t.Fatalf("statusCode(%d) = %d, want %d", status, got, want)
		}
	}
}
