package logger

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// ensureInstanceID: hostname-pid-<8 символов uuid>, если не задан явно.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "unknown"
	}
	return hn + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()[:8]
}

func commonAttr(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}

// EventID and Participant keep the keys of per-session log lines uniform.
func EventID(id string) slog.Attr { return slog.String("event_id", id) }

func Participant(id string) slog.Attr { return slog.String("participant", id) }
