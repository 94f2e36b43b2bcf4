package studio

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func sessionsStartedCounter() metric.Int64Counter {
	m := otel.Meter("github.com/Uni298/OSMStudio/internal/studio")
	c, _ := m.Int64Counter("studio.sessions.started",
		metric.WithDescription("Export sessions accepted"))
	return c
}
