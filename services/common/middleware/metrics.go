package middleware

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/construction-backend/pkg/aws"
)

// MetricsMiddleware publishes request count, latency and error class for
// every request in a single PutMetricData call made off the request path.
func MetricsMiddleware(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsClient == nil || !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		batch := requestMetrics(serviceName, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsClient.PutMetricBatch(ctx, batch); err != nil {
				zap.L().Debug("failed to publish http metrics", zap.Error(err))
			}
		}()
	}
}

func requestMetrics(service, method, route string, status int, latency time.Duration) []types.MetricDatum {
	// route templates keep job IDs out of the dimension set
	if route == "" {
		route = "unmatched"
	}
	dims := map[string]string{
		"Service": service,
		"Method":  method,
		"Path":    route,
		"Status":  statusCodeToRange(status),
	}
	batch := []types.MetricDatum{
		awspkg.Datum(awspkg.MetricHTTPRequests, 1, types.StandardUnitCount, dims),
		awspkg.Datum(awspkg.MetricHTTPLatency, float64(latency.Milliseconds()), types.StandardUnitMilliseconds, dims),
	}
	switch {
	case status >= 500:
		batch = append(batch,
			awspkg.Datum(awspkg.MetricHTTPErrors, 1, types.StandardUnitCount, dims),
			awspkg.Datum(awspkg.MetricHTTP5xx, 1, types.StandardUnitCount, dims))
	case status >= 400:
		batch = append(batch,
			awspkg.Datum(awspkg.MetricHTTPErrors, 1, types.StandardUnitCount, dims),
			awspkg.Datum(awspkg.MetricHTTP4xx, 1, types.StandardUnitCount, dims))
	}
	return batch
}

func statusCodeToRange(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
