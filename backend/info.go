package backend

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/b0bbywan/go-odio-nowplaying/config"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

const (
	UNKNOWN         = "unknown"
	OS_RELEASE_FILE = "/etc/os-release"
)

var startedAt = time.Now()

var osVersion = sync.OnceValue(func() string {
	return readOSRelease(OS_RELEASE_FILE)
})

// ServerInfo describes the running service for GET /server.
type ServerInfo struct {
	Hostname   string    `json:"hostname"`
	OSPlatform string    `json:"os_platform"`
	OSVersion  string    `json:"os_version"`
	APISW      string    `json:"api_sw"`
	APIVersion string    `json:"api_version"`
	StartedAt  time.Time `json:"started_at"`
	Players    int       `json:"players"`
	Listeners  int       `json:"listeners"`
}

func parseKeyValue(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(value, `"`)
	}

	return out, scanner.Err()
}

func readOSRelease(path string) string {
	file, err := os.Open(path)
	if err != nil {
		return UNKNOWN
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Warn("[backend] failed to close %s: %v", path, err)
		}
	}()

	content, err := parseKeyValue(file)
	if err != nil {
		logger.Debug("[backend] failed to parse %s: %v", path, err)
	}

	switch {
	case content["PRETTY_NAME"] != "":
		return content["PRETTY_NAME"]
	case content["NAME"] != "":
		return content["NAME"]
	default:
		return UNKNOWN
	}
}

func (b *Backend) ServerInfo() ServerInfo {
	hostname, err := os.Hostname()
	if err != nil {
		logger.Debug("[backend] failed to get hostname: %v", err)
		hostname = UNKNOWN
	}

	info := ServerInfo{
		Hostname:   hostname,
		OSPlatform: runtime.GOOS + "/" + runtime.GOARCH,
		OSVersion:  osVersion(),
		APISW:      config.AppName,
		APIVersion: config.AppVersion,
		StartedAt:  startedAt,
	}
	if b.MPRIS != nil {
		info.Players = len(b.MPRIS.ListActiveSources())
	}
	if b.Broadcaster != nil {
		info.Listeners = b.Broadcaster.Count()
	}
	return info
}
