package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/orbitpath/planner/internal/dispatcher"

func defaultMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}
