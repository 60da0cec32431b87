package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrInvalidEncoding marks a datagram that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("frame is not valid utf-8")
	// ErrMalformedFrame marks a datagram that is not a JSON object.
	ErrMalformedFrame = errors.New("frame is not a json object")
	// ErrUnknownTopic marks a frame whose topic has no typed variant.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrSchema marks a frame that lacks or mistypes attributes required by its topic.
	ErrSchema = errors.New("schema violation")
)

// SchemaError describes why a frame could not be bound to its variant.
type SchemaError struct {
	Topic  Topic
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: field %q %s", e.Topic, e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

func missing(t Topic, field string) error {
	return &SchemaError{Topic: t, Field: field, Reason: "is required"}
}

// Classify binds a raw frame to the typed variant selected by its topic. It
// returns either a fully populated packet or an error, never both.
func Classify(f *RawFrame) (Packet, error) {
	if f == nil {
		return nil, ErrMalformedFrame
	}
	switch f.Topic {
	case TopicSample:
		return decodeSample(f.Payload)
	case TopicSampleDiscrepancy:
		return decodeDiscrepancy(f.Payload)
	case TopicProtectionStart:
		return decodeProtectionStart(f.Payload)
	case TopicProtectionEnd:
		return decodeProtectionEnd(f.Payload)
	case TopicAccumulatedEvent:
		return decodeAccumulatedEvent(f.Payload)
	case TopicRegionalAlarm:
		return decodeRegionalAlarm(f.Payload)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownTopic, string(f.Topic))
	}
}

type wireMeasurement struct {
	Phase         *string  `json:"fase"`
	Voltage       *float64 `json:"tensao"`
	Current       *float64 `json:"corrente"`
	RealPower     *float64 `json:"potRealW"`
	ApparentPower *float64 `json:"potApaVA"`
	ReactivePower *float64 `json:"potReatVAr"`
	VoltageAngle  *float64 `json:"angTensao"`
	PowerFactor   *float64 `json:"fatorP"`
	Frequency     *float64 `json:"freq"`
}

type wireSample struct {
	DeviceID       *int            `json:"idMU"`
	AssetID        *string         `json:"idAtivo"`
	PacketNumber   *int64          `json:"numPct"`
	Timestamp      *string         `json:"timestamp"`
	SendIntervalMS *int            `json:"freqEnvioMS"`
	Measurements   json.RawMessage `json:"medidas"`
	Variable       *string         `json:"variavelDiscrepante"`
	Phase          *string         `json:"faseDiscrepante"`
}

type wireProtection struct {
	RelayID      *string         `json:"idIED"`
	Function     *string         `json:"funcaoProtecao"`
	Timestamp    *string         `json:"timestamp"`
	Measurements json.RawMessage `json:"medidas"`
}

type wireAccumulated struct {
	RelayID   *string `json:"idIED"`
	EventType *string `json:"tipoEvento"`
	Count     *int    `json:"nroEventosAcumulados"`
	Timestamp *string `json:"timestamp"`
}

type wireRegional struct {
	RegionID    *string `json:"idCidade"`
	EventCount  *int    `json:"nroEventosAssociados"`
	Description *string `json:"descricao"`
	Timestamp   *string `json:"timestamp"`
}

func unmarshalWire(t Topic, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &SchemaError{Topic: t, Field: typeErr.Field, Reason: "has type " + typeErr.Value}
		}
		return fmt.Errorf("%s: %w: %v", t, ErrMalformedFrame, err)
	}
	return nil
}

func decodeSample(payload []byte) (Packet, error) {
	var w wireSample
	if err := unmarshalWire(TopicSample, payload, &w); err != nil {
		return nil, err
	}
	switch {
	case w.DeviceID == nil:
		return nil, missing(TopicSample, "idMU")
	case w.PacketNumber == nil:
		return nil, missing(TopicSample, "numPct")
	case w.SendIntervalMS == nil:
		return nil, missing(TopicSample, "freqEnvioMS")
	}
	ts, err := parseTimestamp(TopicSample, w.Timestamp)
	if err != nil {
		return nil, err
	}
	ms, err := parseMeasurements(TopicSample, w.Measurements)
	if err != nil {
		return nil, err
	}
	return &TelemetrySample{
		DeviceID:       *w.DeviceID,
		AssetID:        deref(w.AssetID),
		PacketNumber:   *w.PacketNumber,
		Time:           ts,
		SendIntervalMS: *w.SendIntervalMS,
		Measurements:   ms,
	}, nil
}

func decodeDiscrepancy(payload []byte) (Packet, error) {
	const t = TopicSampleDiscrepancy
	var w wireSample
	if err := unmarshalWire(t, payload, &w); err != nil {
		return nil, err
	}
	switch {
	case w.DeviceID == nil:
		return nil, missing(t, "idMU")
	case w.PacketNumber == nil:
		return nil, missing(t, "numPct")
	case w.Variable == nil || *w.Variable == "":
		return nil, missing(t, "variavelDiscrepante")
	case w.Phase == nil:
		return nil, missing(t, "faseDiscrepante")
	case !Phase(*w.Phase).Valid():
		return nil, &SchemaError{Topic: t, Field: "faseDiscrepante", Reason: "is not a phase: " + *w.Phase}
	}
	ts, err := parseTimestamp(t, w.Timestamp)
	if err != nil {
		return nil, err
	}
	ms, err := parseMeasurements(t, w.Measurements)
	if err != nil {
		return nil, err
	}
	p := &TelemetryDiscrepancy{
		DeviceID:           *w.DeviceID,
		AssetID:            deref(w.AssetID),
		PacketNumber:       *w.PacketNumber,
		Time:               ts,
		Measurements:       ms,
		DiscrepantVariable: *w.Variable,
		DiscrepantPhase:    Phase(*w.Phase),
	}
	if w.SendIntervalMS != nil {
		p.SendIntervalMS = *w.SendIntervalMS
	}
	return p, nil
}

func decodeProtectionStart(payload []byte) (Packet, error) {
	const t = TopicProtectionStart
	var w wireProtection
	if err := unmarshalWire(t, payload, &w); err != nil {
		return nil, err
	}
	relay, fn, ts, err := protectionHeader(t, w)
	if err != nil {
		return nil, err
	}
	ms, err := parseMeasurements(t, w.Measurements)
	if err != nil {
		return nil, err
	}
	return &ProtectionStart{RelayID: relay, Function: fn, Time: ts, Measurements: ms}, nil
}

func decodeProtectionEnd(payload []byte) (Packet, error) {
	const t = TopicProtectionEnd
	var w wireProtection
	if err := unmarshalWire(t, payload, &w); err != nil {
		return nil, err
	}
	relay, fn, ts, err := protectionHeader(t, w)
	if err != nil {
		return nil, err
	}
	return &ProtectionEnd{RelayID: relay, Function: fn, Time: ts}, nil
}

func protectionHeader(t Topic, w wireProtection) (string, string, time.Time, error) {
	if w.RelayID == nil || *w.RelayID == "" {
		return "", "", time.Time{}, missing(t, "idIED")
	}
	if w.Function == nil || *w.Function == "" {
		return "", "", time.Time{}, missing(t, "funcaoProtecao")
	}
	ts, err := parseTimestamp(t, w.Timestamp)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return *w.RelayID, *w.Function, ts, nil
}

func decodeAccumulatedEvent(payload []byte) (Packet, error) {
	const t = TopicAccumulatedEvent
	var w wireAccumulated
	if err := unmarshalWire(t, payload, &w); err != nil {
		return nil, err
	}
	switch {
	case w.RelayID == nil || *w.RelayID == "":
		return nil, missing(t, "idIED")
	case w.EventType == nil || *w.EventType == "":
		return nil, missing(t, "tipoEvento")
	case w.Count == nil:
		return nil, missing(t, "nroEventosAcumulados")
	}
	ts, err := parseTimestamp(t, w.Timestamp)
	if err != nil {
		return nil, err
	}
	return &AccumulatedEvent{RelayID: *w.RelayID, EventType: *w.EventType, Count: *w.Count, Time: ts}, nil
}

func decodeRegionalAlarm(payload []byte) (Packet, error) {
	const t = TopicRegionalAlarm
	var w wireRegional
	if err := unmarshalWire(t, payload, &w); err != nil {
		return nil, err
	}
	switch {
	case w.RegionID == nil || *w.RegionID == "":
		return nil, missing(t, "idCidade")
	case w.EventCount == nil:
		return nil, missing(t, "nroEventosAssociados")
	case w.Description == nil:
		return nil, missing(t, "descricao")
	}
	ts, err := parseTimestamp(t, w.Timestamp)
	if err != nil {
		return nil, err
	}
	return &RegionalAlarm{RegionID: *w.RegionID, EventCount: *w.EventCount, Description: *w.Description, Time: ts}, nil
}

func parseTimestamp(t Topic, raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Time{}, missing(t, "timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, *raw)
	if err != nil {
		return time.Time{}, &SchemaError{Topic: t, Field: "timestamp", Reason: "is not RFC 3339: " + *raw}
	}
	return ts, nil
}

// parseMeasurements accepts a list of readings or, as some relays send, a
// single reading object.
func parseMeasurements(t Topic, raw json.RawMessage) ([]Measurement, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, missing(t, "medidas")
	}

	var items []wireMeasurement
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &SchemaError{Topic: t, Field: "medidas", Reason: "is not a list of readings"}
		}
	case '{':
		var one wireMeasurement
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, &SchemaError{Topic: t, Field: "medidas", Reason: "is not a reading"}
		}
		items = append(items, one)
	default:
		return nil, &SchemaError{Topic: t, Field: "medidas", Reason: "must be a list or an object"}
	}

	out := make([]Measurement, 0, len(items))
	for i, w := range items {
		m, err := w.bind(t, i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (w wireMeasurement) bind(t Topic, idx int) (Measurement, error) {
	field := func(name string) string { return "medidas[" + strconv.Itoa(idx) + "]." + name }

	if w.Phase == nil {
		return Measurement{}, missing(t, field("fase"))
	}
	if !Phase(*w.Phase).Valid() {
		return Measurement{}, &SchemaError{Topic: t, Field: field("fase"), Reason: "is not a phase: " + *w.Phase}
	}
	values := []struct {
		name string
		v    *float64
	}{
		{"tensao", w.Voltage},
		{"corrente", w.Current},
		{"potRealW", w.RealPower},
		{"potApaVA", w.ApparentPower},
		{"potReatVAr", w.ReactivePower},
		{"angTensao", w.VoltageAngle},
		{"fatorP", w.PowerFactor},
		{"freq", w.Frequency},
	}
	for _, v := range values {
		if v.v == nil {
			return Measurement{}, missing(t, field(v.name))
		}
	}
	return Measurement{
		Phase:         Phase(*w.Phase),
		Voltage:       *w.Voltage,
		Current:       *w.Current,
		RealPower:     *w.RealPower,
		ApparentPower: *w.ApparentPower,
		ReactivePower: *w.ReactivePower,
		VoltageAngle:  *w.VoltageAngle,
		PowerFactor:   *w.PowerFactor,
		Frequency:     *w.Frequency,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func deviceSource(id int) string {
	return "MU_" + strconv.Itoa(id)
}
