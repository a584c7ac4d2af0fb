package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Field names shared across services so log lines stay greppable.
const (
	FieldService   = "service"
	FieldOrderID   = "order_id"
	FieldShortCode = "short_code"
	FieldEventID   = "event_id"
	FieldStep      = "step"
	FieldStatus    = "status"
)

// New returns a JSON-formatted logger tagged with the service name.
func New(service string) *log.Entry {
	l := log.New()
	l.SetFormatter(&log.JSONFormatter{})
	l.SetOutput(os.Stdout)
	l.SetLevel(parseLevel(os.Getenv("LOG_LEVEL")))
	return l.WithField(FieldService, service)
}

func parseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
