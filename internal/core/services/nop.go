package services

import (
	"context"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// NopMetrics discards every observation.
type NopMetrics struct{}

var _ ports.Metrics = NopMetrics{}

func (NopMetrics) ObserveReload(string, error)   {}
func (NopMetrics) ObserveMutation(string, error) {}
func (NopMetrics) ObservePush(string)            {}
func (NopMetrics) ObservePollSkipped()           {}
func (NopMetrics) SetPushConnected(bool)         {}

// NopNotifier drops notices.
type NopNotifier struct{}

var _ ports.Notifier = NopNotifier{}

func (NopNotifier) Notify(context.Context, domain.Notice) {}
