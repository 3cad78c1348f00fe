package stream

import (
	"fmt"
	"strings"
	"time"
)

// Classification is the speed band a reading falls into.
type Classification string

const (
	HighSpeed Classification = "HIGH_SPEED"
	LowSpeed  Classification = "LOW_SPEED"
	Normal    Classification = "NORMAL"
)

const (
	VerdictNormal = "NORMAL"

	warningPrefix = "WARNING_"
	alertPrefix   = "ALERT_"
)

// WarningVerdict formats the verdict for a high-speed run below the alert threshold.
func WarningVerdict(count int64) string {
	return fmt.Sprintf("%s%d", warningPrefix, count)
}

// AlertVerdict formats the verdict for a high-speed run at or above the alert threshold.
func AlertVerdict(count int64) string {
	return fmt.Sprintf("%s%d", alertPrefix, count)
}

// OutputRecord is what a ProcessFunction emits for an input event.
type OutputRecord struct {
	Key            string         `json:"key"`
	Value          float64        `json:"value"`
	Classification Classification `json:"classification"`
	Verdict        string         `json:"verdict"`
	Timestamp      time.Time      `json:"ts"`
	Seq            uint64         `json:"seq"`
}

// IsAlert reports whether the record carries an ALERT_<n> verdict.
func (r OutputRecord) IsAlert() bool {
	return strings.HasPrefix(r.Verdict, alertPrefix)
}

// String renders the record the way the tuple sink prints it.
func (r OutputRecord) String() string {
	return fmt.Sprintf("(%s, %v, %s, %s)", r.Key, r.Value, r.Classification, r.Verdict)
}
