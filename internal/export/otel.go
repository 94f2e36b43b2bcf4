package export

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

func meter() metric.Meter {
	return otel.Meter("github.com/Uni298/OSMStudio/internal/export")
}

// instruments holds the export pipeline metrics. Counters fall back to
// no-ops when no meter provider is installed.
type instruments struct {
	framesCaptured metric.Int64Counter
	settleTimeouts metric.Int64Counter
	framesEncoded  metric.Int64Counter
}

func newInstruments() instruments {
	m := meter()
	captured, _ := m.Int64Counter("export.frames.captured",
		metric.WithDescription("Frames captured from render surfaces"))
	timeouts, _ := m.Int64Counter("export.settle.timeouts",
		metric.WithDescription("Tile settle waits that timed out before capture"))
	encoded, _ := m.Int64Counter("export.frames.encoded",
		metric.WithDescription("Frames submitted to the encoder"))
	return instruments{
		framesCaptured: captured,
		settleTimeouts: timeouts,
		framesEncoded:  encoded,
	}
}
