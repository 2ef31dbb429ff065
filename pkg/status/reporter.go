package status

import (
	"github.com/Veraticus/afkwatch/pkg/interfaces"
	"github.com/Veraticus/afkwatch/pkg/presence"
)

// Reporter adapts the Indicator to implement interfaces.StatusReporter
type Reporter struct {
	indicator *Indicator
}

// NewReporter creates a new status reporter
func NewReporter(indicator *Indicator) *Reporter {
	return &Reporter{
		indicator: indicator,
	}
}

// Ensure Reporter implements StatusReporter
var _ interfaces.StatusReporter = (*Reporter)(nil)

// ReportSending reports that a notification is being sent
func (r *Reporter) ReportSending() {
	if r.indicator != nil {
		r.indicator.SetDelivery(DeliverySending)
	}
}

// ReportSuccess reports that a notification was sent successfully
func (r *Reporter) ReportSuccess() {
	if r.indicator != nil {
		r.indicator.SetDelivery(DeliverySuccess)
	}
}

// ReportFailure reports that a notification failed to send
func (r *Reporter) ReportFailure() {
	if r.indicator != nil {
		r.indicator.SetDelivery(DeliveryFailed)
	}
}

// ReportPresence mirrors a presence event on the indicator.
func (r *Reporter) ReportPresence(ev presence.Event) {
	if r.indicator == nil || ev.State == "" || ev.Name != string(ev.State) {
		return
	}
	r.indicator.SetPresence(ev.State, ev.At)
}
