package observe

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/Uni298/OSMStudio/internal/observe"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
