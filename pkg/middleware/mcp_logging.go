package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/t2sql-engine/pkg/logging"
)

const maxArgumentLogLength = 200

var sensitiveArgumentKeywords = []string{"password", "secret", "token", "key", "credential"}

// MCPRequestLogger returns middleware that logs MCP JSON-RPC requests and responses.
// It reads the tool name and arguments from the request body and the error, if
// any, from the response body. Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				// Not every MCP message is a well-formed call; the server answers those itself.
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			toolName := rpcReq.Params.Name
			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", sanitizeArguments(rpcReq.Params.Arguments)),
			)

			recorder := &mcpResponseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("Failed to parse MCP response JSON", zap.Error(err))
				return
			}

			if rpcResp.Error != nil {
				logger.Debug("MCP response error",
					zap.String("tool", toolName),
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", logging.Sanitize(rpcResp.Error.Message)),
					zap.Duration("duration", duration),
				)
				return
			}
			logger.Debug("MCP response success",
				zap.String("tool", toolName),
				zap.Bool("tool_error", rpcResp.Result.IsError),
				zap.Duration("duration", duration),
			)
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// sanitizeArguments redacts secret-looking keys and bounds string values.
// Questions get the tighter question bound since they are user-supplied text.
func sanitizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		if isSensitiveArgument(k) {
			result[k] = logging.RedactedText
			continue
		}

		str, ok := v.(string)
		if !ok {
			result[k] = v
			continue
		}
		limit := maxArgumentLogLength
		if strings.EqualFold(k, "question") {
			limit = logging.MaxQuestionLogLength
		}
		result[k] = logging.TruncateString(logging.Sanitize(str), limit)
	}
	return result
}

func isSensitiveArgument(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveArgumentKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
