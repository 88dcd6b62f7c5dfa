package internal

import (
	"log"
	"os"
)

func NewLogger(component string) *log.Logger {
	prefix := "prbridge"
	if component != "" {
		prefix = prefix + "/" + component
	}
	return log.New(os.Stdout, prefix+" ", log.LstdFlags|log.Lmicroseconds)
}

// WithRequestID returns a logger whose prefix carries the delivery id so
// lines from overlapping requests can be told apart. An empty id returns
// the logger unchanged.
func WithRequestID(logger *log.Logger, id string) *log.Logger {
	if logger == nil {
		logger = log.Default()
	}
	if id == "" {
		return logger
	}
	return log.New(logger.Writer(), logger.Prefix()+"["+id+"] ", logger.Flags())
}
