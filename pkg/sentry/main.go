// Package sentry reports events that need a human to the configured Sentry
// project. Without a DSN every call is a no-op.
package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-faster/errors"
)

type SentryInfoData map[string]interface{}

type Level = sentry.Level

const LevelError = sentry.LevelError

var inited = false

func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return errors.Wrap(err, "sentry init")
	}
	inited = true
	return nil
}

func Send(title string, data SentryInfoData, logLevel Level) {
	if !inited {
		return
	}

	go func(localHub *sentry.Hub) {
		localHub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetLevel(logLevel)
			scope.SetExtras(data)
		})
		localHub.CaptureMessage(title)
	}(sentry.CurrentHub().Clone())
}

// Flush waits for buffered events to be delivered.
func Flush(timeout time.Duration) {
	if !inited {
		return
	}
	sentry.Flush(timeout)
}
