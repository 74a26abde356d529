// Package telemetry implements the serial telemetry core: frame decoding,
// the sliding-window series buffer backing the live plot, and the link
// reader that drives a blocking read loop over a serial connection.
package telemetry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Frame tag prefixes shared with the device firmware.
const (
	TagTelemetry = "[adc]@"
	TagInfo      = "[info]@"
	TagDebug     = "[debug]@"
	TagParam     = "[param]@"
)

// FrameKind classifies a decoded line.
type FrameKind int

const (
	// FrameTelemetry carries named numeric channels for the plot.
	FrameTelemetry FrameKind = iota
	// FrameInfo carries a single device-metadata key/value pair.
	FrameInfo
)

// Frame is the result of decoding one input line.
type Frame struct {
	Kind   FrameKind
	Record Record   // valid when Kind == FrameTelemetry
	Info   InfoPair // valid when Kind == FrameInfo
}

var (
	labeledPairRe = regexp.MustCompile(`^([A-Za-z0-9_]+):([+-]?[0-9]+(?:\.[0-9]+)?)$`)
	bareNumberRe  = regexp.MustCompile(`^[+-]?[0-9]+(?:\.[0-9]+)?$`)
	infoPairRe    = regexp.MustCompile(`^([A-Za-z0-9_]+):(.*)$`)
)

// DecodeLine classifies and parses a single line of input. It is pure and
// deterministic. The second return value is false when the line matches no
// known frame grammar; such lines are not errors, the caller still surfaces
// them as raw log lines.
//
// Telemetry payloads parse all-or-nothing: one unparsable pair rejects the
// whole line, no partial record is ever produced. Labeled pairs are tried
// first, then the legacy unlabeled positional form.
func DecodeLine(line string) (Frame, bool) {
	line = strings.TrimSpace(line)

	if payload, ok := strings.CutPrefix(line, TagTelemetry); ok {
		if rec, ok := decodeLabeled(payload); ok {
			return Frame{Kind: FrameTelemetry, Record: rec}, true
		}
		if rec, ok := decodePositional(payload); ok {
			return Frame{Kind: FrameTelemetry, Record: rec}, true
		}
		return Frame{}, false
	}

	if payload, ok := strings.CutPrefix(line, TagInfo); ok {
		m := infoPairRe.FindStringSubmatch(strings.TrimSpace(payload))
		if m == nil {
			return Frame{}, false
		}
		return Frame{Kind: FrameInfo, Info: InfoPair{Key: m[1], Value: m[2]}}, true
	}

	return Frame{}, false
}

// decodeLabeled parses a "label:value,label:value" payload.
func decodeLabeled(payload string) (Record, bool) {
	parts := strings.Split(payload, ",")
	rec := make(Record, 0, len(parts))
	for _, part := range parts {
		m := labeledPairRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, false
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, false
		}
		rec = append(rec, Sample{Key: m[1], Value: v})
	}
	if len(rec) == 0 {
		return nil, false
	}
	return rec, true
}

// decodePositional parses the legacy unlabeled "v1,v2,..." payload, assigning
// positional keys "Value 1".."Value N".
func decodePositional(payload string) (Record, bool) {
	parts := strings.Split(payload, ",")
	rec := make(Record, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if !bareNumberRe.MatchString(part) {
			return nil, false
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, false
		}
		rec = append(rec, Sample{Key: fmt.Sprintf("Value %d", i+1), Value: v})
	}
	if len(rec) == 0 {
		return nil, false
	}
	return rec, true
}

// EncodeRecord renders a record back into telemetry wire form,
// "[adc]@label1:value1,label2:value2". Decoding the result yields an equal
// record for values that round-trip through decimal formatting.
func EncodeRecord(rec Record) string {
	var sb strings.Builder
	sb.WriteString(TagTelemetry)
	for i, s := range rec {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s.Key)
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(s.Value, 'f', -1, 64))
	}
	return sb.String()
}
