package logger

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// slowRequestThreshold marks requests whose headers took too long to arrive
const slowRequestThreshold = 2 * time.Second

// RequestMiddleware returns a resty hook that logs every outbound request
func RequestMiddleware(l *Logger) resty.RequestMiddleware {
	return func(_ *resty.Client, r *resty.Request) error {
		l.WithFields(map[string]interface{}{
			"method": r.Method,
			"url":    r.URL,
		}).Debug("Request sent")
		return nil
	}
}

// ResponseMiddleware returns a resty hook that logs the response status and
// the time until headers arrived. Streaming bodies are not read here.
func ResponseMiddleware(l *Logger) resty.ResponseMiddleware {
	return func(_ *resty.Client, resp *resty.Response) error {
		fields := map[string]interface{}{"status": resp.StatusCode()}
		if resp.Request != nil {
			fields["method"] = resp.Request.Method
			fields["url"] = resp.Request.URL
		}
		respLogger := l.WithFields(fields).WithDuration(resp.Time())

		switch code := resp.StatusCode(); {
		case code >= 500:
			respLogger.Info("Request failed with server error")
		case code >= 400:
			respLogger.Info("Request failed with client error")
		default:
			respLogger.Debug("Request completed")
		}

		if resp.Time() > slowRequestThreshold {
			respLogger.Infof("Slow response detected: %v", resp.Time())
		}
		return nil
	}
}

// ErrorHook returns a resty hook that logs transport-level failures
func ErrorHook(l *Logger) resty.ErrorHook {
	return func(r *resty.Request, err error) {
		fields := map[string]interface{}{}
		if r != nil {
			fields["method"] = r.Method
			fields["url"] = r.URL
		}
		l.WithFields(fields).WithError(err).Debug("Request error")
	}
}
