package domain

import "time"

// Packet is a validated, typed record produced by Classify.
type Packet interface {
	Topic() Topic
	Timestamp() time.Time
	// Source identifies the emitting device, relay or region.
	Source() string
}

// Phase is one of the three electrical phases.
type Phase string

const (
	PhaseA Phase = "A"
	PhaseB Phase = "B"
	PhaseC Phase = "C"
)

func (p Phase) Valid() bool {
	return p == PhaseA || p == PhaseB || p == PhaseC
}

// Measurement is one per-phase electrical reading.
type Measurement struct {
	Phase         Phase   `json:"phase"`
	Voltage       float64 `json:"voltage"`
	Current       float64 `json:"current"`
	RealPower     float64 `json:"real_power_w"`
	ApparentPower float64 `json:"apparent_power_va"`
	ReactivePower float64 `json:"reactive_power_var"`
	VoltageAngle  float64 `json:"voltage_angle"`
	PowerFactor   float64 `json:"power_factor"`
	Frequency     float64 `json:"frequency"`
}

// TelemetrySample is a periodic merging-unit reading (99/1).
type TelemetrySample struct {
	DeviceID       int           `json:"device_id"`
	AssetID        string        `json:"asset_id,omitempty"`
	PacketNumber   int64         `json:"packet_number"`
	Time           time.Time     `json:"timestamp"`
	SendIntervalMS int           `json:"send_interval_ms"`
	Measurements   []Measurement `json:"measurements"`
}

func (p *TelemetrySample) Topic() Topic         { return TopicSample }
func (p *TelemetrySample) Timestamp() time.Time { return p.Time }
func (p *TelemetrySample) Source() string       { return deviceSource(p.DeviceID) }

// TelemetryDiscrepancy is a sample flagged by the merging unit as out of range (99/2).
type TelemetryDiscrepancy struct {
	DeviceID           int           `json:"device_id"`
	AssetID            string        `json:"asset_id,omitempty"`
	PacketNumber       int64         `json:"packet_number"`
	Time               time.Time     `json:"timestamp"`
	SendIntervalMS     int           `json:"send_interval_ms,omitempty"`
	Measurements       []Measurement `json:"measurements"`
	DiscrepantVariable string        `json:"discrepant_variable"`
	DiscrepantPhase    Phase         `json:"discrepant_phase"`
}

func (p *TelemetryDiscrepancy) Topic() Topic         { return TopicSampleDiscrepancy }
func (p *TelemetryDiscrepancy) Timestamp() time.Time { return p.Time }
func (p *TelemetryDiscrepancy) Source() string       { return deviceSource(p.DeviceID) }

// ProtectionStart reports a protection function picking up on a relay (200/1).
type ProtectionStart struct {
	RelayID      string        `json:"relay_id"`
	Function     string        `json:"function"`
	Time         time.Time     `json:"timestamp"`
	Measurements []Measurement `json:"measurements"`
}

func (p *ProtectionStart) Topic() Topic         { return TopicProtectionStart }
func (p *ProtectionStart) Timestamp() time.Time { return p.Time }
func (p *ProtectionStart) Source() string       { return p.RelayID }

// ProtectionEnd reports a protection function dropping out (200/2).
type ProtectionEnd struct {
	RelayID  string    `json:"relay_id"`
	Function string    `json:"function"`
	Time     time.Time `json:"timestamp"`
}

func (p *ProtectionEnd) Topic() Topic         { return TopicProtectionEnd }
func (p *ProtectionEnd) Timestamp() time.Time { return p.Time }
func (p *ProtectionEnd) Source() string       { return p.RelayID }

// AccumulatedEvent carries a relay's running count of one event type (400/1).
type AccumulatedEvent struct {
	RelayID   string    `json:"relay_id"`
	EventType string    `json:"event_type"`
	Count     int       `json:"count"`
	Time      time.Time `json:"timestamp"`
}

func (p *AccumulatedEvent) Topic() Topic         { return TopicAccumulatedEvent }
func (p *AccumulatedEvent) Timestamp() time.Time { return p.Time }
func (p *AccumulatedEvent) Source() string       { return p.RelayID }

// RegionalAlarm is a correlated outage alarm for a city or region (CEP/Alarm).
type RegionalAlarm struct {
	RegionID    string    `json:"region_id"`
	EventCount  int       `json:"event_count"`
	Description string    `json:"description"`
	Time        time.Time `json:"timestamp"`
}

func (p *RegionalAlarm) Topic() Topic         { return TopicRegionalAlarm }
func (p *RegionalAlarm) Timestamp() time.Time { return p.Time }
func (p *RegionalAlarm) Source() string       { return p.RegionID }

var (
	_ Packet = (*TelemetrySample)(nil)
	_ Packet = (*TelemetryDiscrepancy)(nil)
	_ Packet = (*ProtectionStart)(nil)
	_ Packet = (*ProtectionEnd)(nil)
	_ Packet = (*AccumulatedEvent)(nil)
	_ Packet = (*RegionalAlarm)(nil)
)
