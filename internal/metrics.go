package internal

import "expvar"

var (
	requestsTotal   = expvar.NewMap("prbridge_requests_total")
	authFailures    = expvar.NewMap("prbridge_auth_failures_total")
	decodeFailures  = expvar.NewMap("prbridge_decode_failures_total")
	unsupportedEvts = expvar.NewMap("prbridge_unsupported_events_total")
	suppressedTotal = expvar.NewMap("prbridge_suppressed_total")
	deliveredTotal  = expvar.NewMap("prbridge_delivered_total")
	deliveryErrors  = expvar.NewMap("prbridge_delivery_errors_total")
)

func IncRequest(event string) {
	requestsTotal.Add(event, 1)
}

func IncAuthFailure(kind string) {
	authFailures.Add(kind, 1)
}

func IncDecodeFailure(event string) {
	decodeFailures.Add(event, 1)
}

func IncUnsupportedEvent(event string) {
	unsupportedEvts.Add(event, 1)
}

func IncSuppressed(reason string) {
	suppressedTotal.Add(reason, 1)
}

func IncDelivered(driver string) {
	deliveredTotal.Add(driver, 1)
}

func IncDeliveryError(driver string) {
	deliveryErrors.Add(driver, 1)
}
