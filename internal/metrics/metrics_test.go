package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestNew(t *testing.T) {
	m := New()
	if m.Registry() == nil {
		t.Fatal("Registry() returned nil")
	}

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	// Vectors without observations are not gathered, gauges always are
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"postcard_credits_remaining", "postcard_subscribers_active", "postcard_uptime_seconds"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestGlobalMetrics(t *testing.T) {
	if Global() != nil {
		t.Error("Global() should be nil before SetGlobal")
	}

	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	if Global() != m {
		t.Error("Global() did not return the set metrics")
	}
}

func TestHelpers(t *testing.T) {
	m := New()
	SetGlobal(m)
	defer SetGlobal(nil)

	IncRenders("modern")
	IncRenders("modern")
	IncMessagesSent("sandbox", "campaign")
	IncMessagesFailed("relay", "webhook", "permanent")
	IncCampaigns("sent")
	IncWebhookEvents("charge.refunded", "sent")
	SetCreditsRemaining(42)

	if got := counterValue(t, m.RendersTotal.WithLabelValues("modern")); got != 2 {
		t.Errorf("renders = %v, want 2", got)
	}
	if got := counterValue(t, m.MessagesSentTotal.WithLabelValues("sandbox", "campaign")); got != 1 {
		t.Errorf("sent = %v, want 1", got)
	}
	if got := counterValue(t, m.MessagesFailedTotal.WithLabelValues("relay", "webhook", "permanent")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := counterValue(t, m.CampaignsTotal.WithLabelValues("sent")); got != 1 {
		t.Errorf("campaigns = %v, want 1", got)
	}
	if got := counterValue(t, m.WebhookEventsTotal.WithLabelValues("charge.refunded", "sent")); got != 1 {
		t.Errorf("webhooks = %v, want 1", got)
	}
	if got := gaugeValue(t, m.CreditsRemaining); got != 42 {
		t.Errorf("credits = %v, want 42", got)
	}
}

func TestHelpersWithoutGlobal(t *testing.T) {
	SetGlobal(nil)

	// Must not panic
	IncRenders("modern")
	IncMessagesSent("sandbox", "campaign")
	IncMessagesFailed("sandbox", "campaign", "temporary")
	IncCampaigns("failed")
	IncWebhookEvents("x", "ignored")
	SetCreditsRemaining(1)
}
