package federation

import (
	"github.com/hashicorp/go-metrics"
)

var (
	MetricDeliveryCount      = []string{"nodeweave", "delivery", "count"}
	MetricInboxReceivedCount = []string{"nodeweave", "inbox", "received", "count"}
	MetricStreamBuildTime    = []string{"nodeweave", "stream", "build", "time"}
	MetricStreamDroppedCount = []string{"nodeweave", "stream", "dropped", "count"}
)

type TelemetryLabel string

var (
	LabelOutcome TelemetryLabel = "outcome"
	LabelKind    TelemetryLabel = "kind"
	LabelVerb    TelemetryLabel = "verb"
	LabelScope   TelemetryLabel = "scope"
	LabelReason  TelemetryLabel = "reason"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func sinkOrDefault(ms metrics.MetricSink) metrics.MetricSink {
	if ms == nil {
		return metrics.Default()
	}
	return ms
}
