// Package events holds the funnel's domain events on top of the platform bus.
package events

import (
	platformevents "signup_funnel_backend/platform/events"
	"signup_funnel_backend/platform/logger"
)

type InMemoryBus = platformevents.InMemoryBus

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}
