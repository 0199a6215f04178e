package logging

import (
	"fmt"
	"io"
	"strconv"

	"github.com/logdyhq/logdy-core/logdy"
	"github.com/rs/zerolog/log"

	"homecam-gateway/internal/config"
)

// logdyWriter adapts the embedded Logdy instance to io.Writer so it can
// sit next to the console writer in a zerolog MultiLevelWriter.
type logdyWriter struct {
	ui logdy.Logdy
}

func (w *logdyWriter) Write(p []byte) (int, error) {
	w.ui.LogString(string(p))
	return len(p), nil
}

// StartLogdy brings up the embedded Logdy web UI for browsing gateway
// logs. It returns a writer that mirrors log lines into the UI, along
// with the address the UI is served on.
func StartLogdy(cfg *config.Config) (io.Writer, string, error) {
	port := strconv.Itoa(cfg.LogdyPort)
	ui := logdy.InitializeLogdy(logdy.Config{
		ServerIp:   cfg.LogdyHost,
		ServerPort: port,
	}, nil)

	addr := fmt.Sprintf("http://%s:%s", cfg.LogdyHost, port)
	log.Info().Str("url", addr).Msg("Log viewer listening")
	return &logdyWriter{ui: ui}, addr, nil
}
