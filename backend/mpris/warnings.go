package mpris

import (
	"strings"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/cache"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const warnTTL = time.Minute

// warnLimiter logs a repeated warning once per TTL; repeats go to debug.
type warnLimiter struct {
	seen *cache.Cache[struct{}]
}

func newWarnLimiter(ttl time.Duration) *warnLimiter {
	return &warnLimiter{seen: cache.New[struct{}](ttl)}
}

func (l *warnLimiter) warn(key, msg string, args ...interface{}) {
	if l.seen.Add(key, struct{}{}) {
		logger.Warn(msg, args...)
		return
	}
	logger.Debug(msg, args...)
}

// report logs the fields dropped while decoding a payload from busName.
func (l *warnLimiter) report(busName string, warnings []PartialDecodeWarning) {
	for _, w := range warnings {
		l.warn(busName+"/"+w.Field, "[mpris] %s: dropped %v", busName, w)
	}
}

// forget clears every key recorded for busName.
func (l *warnLimiter) forget(busName string) {
	prefix := busName + "/"
	l.seen.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
	l.seen.CleanExpired()
}
