package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Chronicle/internal/shared/transport"
	"Chronicle/modules/kit/logx"
	"Chronicle/modules/kit/tracex"
)

// SessionHeader optionally names the session a request is about.
const SessionHeader = "X-Session-ID"

// AccessLog writes one record per request. Handlers settle the result with
// transport.SetResult; unsettled requests are judged by their HTTP status.
func AccessLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		parent := c.Request.Context()
		if id := c.GetHeader(SessionHeader); id != "" {
			parent = tracex.WithSessionID(parent, id)
		}
		ctx := transport.NewContextWithParent(parent, c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		transport.AddFields(ctx, zap.Int("status", status), zap.String("client_ip", c.ClientIP()))
		if !transport.FromContext(ctx).Settled() {
			transport.SetBizCode(ctx, statusCode(status))
		}
		if len(c.Errors) > 0 {
			transport.SetErrorReason(ctx, c.Errors.String())
		}
		transport.WriteAccessLog(ctx, log)
	}
}

func statusCode(status int) transport.BizCode {
	switch {
	case status >= http.StatusInternalServerError:
		return transport.SystemError
	case status >= http.StatusBadRequest:
		return transport.InvalidParam
	}
	return transport.OK
}
