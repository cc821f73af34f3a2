// Package logging provides the zerolog-backed relaygate.Logger
// implementation used throughout the engine.
package logging

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// ZerologLogger implements relaygate.Logger over zerolog, with an optional
// sampler to keep noisy Warn/Error paths (a misconfigured endpoint hammering
// the same failure) from flooding output.
type ZerologLogger struct {
	logger  zerolog.Logger
	sampler zerolog.Sampler
	sampled zerolog.Logger
}

// New creates a ZerologLogger writing to w with a timestamp on every event.
// RELAYGATE_LOG_SAMPLE_N, if set to an integer > 1, samples 1-in-N
// Warn/Error events.
func New(w *os.File) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().Timestamp().Logger()

	var samp zerolog.Sampler
	if v := os.Getenv("RELAYGATE_LOG_SAMPLE_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			samp = zerolog.RandomSampler(n)
		}
	}
	var sampled zerolog.Logger
	if samp != nil {
		sampled = l.Sample(samp)
	}
	return &ZerologLogger{logger: l, sampler: samp, sampled: sampled}
}

func (l *ZerologLogger) log(event *zerolog.Event, msg string, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			event.Interface(key, Mask(key, keysAndValues[i+1]))
		} else {
			event.Interface(key, nil)
		}
	}
	event.Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Debug(), msg, keysAndValues...)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log(l.logger.Info(), msg, keysAndValues...)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	if l.sampler != nil {
		l.log(l.sampled.Warn(), msg, keysAndValues...)
		return
	}
	l.log(l.logger.Warn(), msg, keysAndValues...)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...interface{}) {
	if l.sampler != nil {
		l.log(l.sampled.Error(), msg, keysAndValues...)
		return
	}
	l.log(l.logger.Error(), msg, keysAndValues...)
}
