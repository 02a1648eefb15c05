package amazon

import (
	"amazonorders/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/amazon")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables full request/response dumps for every
// session constructed afterwards.
func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
