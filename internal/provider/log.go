package provider

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
)

// LogProvider is the development fallback: it prints the message instead of
// delivering it and mints a local message id.
type LogProvider struct {
	logger *log.Logger
	seq    atomic.Int64
}

func NewLogProvider(logger *log.Logger) *LogProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(_ context.Context, to, body string) (string, error) {
	id := fmt.Sprintf("log-%d", p.seq.Add(1))
	p.logger.Printf("provider: would send to=%s id=%s body=%q", to, id, body)
	return id, nil
}
