// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ManuGH/playerplatform/internal/player/xua"
)

// Serialization keys. Consumers outside this package read events only through
// these keys or through the typed accessors.
const (
	KeySessionID  = "SESSION_ID"
	KeyTimestamp  = "TIMESTAMP"
	KeyKind       = "KIND"
	KeyAdBreak    = "AD_BREAK"
	KeyMajor      = "MAJOR"
	KeyMinor      = "MINOR"
	KeyError      = "ERROR"
	KeyExchangeID = "EXCHANGE_ID"
	KeyXuaType    = "XUA_TYPE"
	KeyPosition   = "POSITION"
	KeyValue      = "VALUE"
)

// Record is the canonical key-value form of an event.
type Record map[string]string

// Keys returns the record keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode returns the canonical record for e. Identical events always encode
// to identical records.
func Encode(e Event) (Record, error) {
	if e == nil {
		return nil, invalid("event", "nil")
	}
	base := e.Base()
	r := Record{
		KeySessionID: base.SessionID,
		KeyTimestamp: base.Timestamp.UTC().Format(time.RFC3339Nano),
		KeyKind:      string(e.Kind()),
	}

	switch ev := e.(type) {
	case VideoEventData:
	case AdBreakStartEventData:
		if err := putJSON(r, KeyAdBreak, ev.adBreak); err != nil {
			return nil, err
		}
	case AdBreakCompleteEventData:
		if err := putJSON(r, KeyAdBreak, ev.adBreak); err != nil {
			return nil, err
		}
	case DrmFailureEventData:
		r[KeyMajor] = strconv.Itoa(ev.codes.Major)
		r[KeyMinor] = strconv.Itoa(ev.codes.Minor)
		if ev.exchangeID != "" {
			r[KeyExchangeID] = ev.exchangeID
		}
		if ev.cause != nil {
			if err := putJSON(r, KeyError, ev.cause); err != nil {
				return nil, err
			}
		}
	case TelemetryEventData:
		r[KeyXuaType] = ev.tag.String()
		r[KeyPosition] = strconv.FormatInt(ev.positionMs, 10)
		if ev.value != "" {
			r[KeyValue] = ev.value
		}
	default:
		return nil, invalid("kind", fmt.Sprintf("unsupported event type %T", e))
	}
	return r, nil
}

// Decode reconstructs an event from its canonical record.
func Decode(r Record) (Event, error) {
	if r == nil {
		return nil, invalid("record", "nil")
	}
	sessionID, ok := r[KeySessionID]
	if !ok {
		return nil, invalid(KeySessionID, "missing")
	}
	rawTS, ok := r[KeyTimestamp]
	if !ok {
		return nil, invalid(KeyTimestamp, "missing")
	}
	at, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return nil, invalid(KeyTimestamp, err.Error())
	}

	switch kind := Kind(r[KeyKind]); kind {
	case KindVideo:
		return asEvent(NewVideoEvent(sessionID, at))
	case KindAdBreakStart, KindAdBreakComplete:
		var ab VideoAdBreak
		if err := getJSON(r, KeyAdBreak, &ab); err != nil {
			return nil, err
		}
		if kind == KindAdBreakStart {
			return asEvent(NewAdBreakStart(sessionID, at, &ab))
		}
		return asEvent(NewAdBreakComplete(sessionID, at, &ab))
	case KindDrmFailure:
		codes, err := decodeCodes(r)
		if err != nil {
			return nil, err
		}
		var cause *DrmError
		if _, ok := r[KeyError]; ok {
			cause = &DrmError{}
			if err := getJSON(r, KeyError, cause); err != nil {
				return nil, err
			}
		}
		return asEvent(NewDrmFailure(sessionID, at, r[KeyExchangeID], codes, cause))
	case KindTelemetry:
		tag, err := xua.ParseEventType(r[KeyXuaType])
		if err != nil {
			return nil, invalid(KeyXuaType, err.Error())
		}
		pos, err := strconv.ParseInt(r[KeyPosition], 10, 64)
		if err != nil {
			return nil, invalid(KeyPosition, err.Error())
		}
		return asEvent(NewTelemetry(sessionID, at, tag, pos, r[KeyValue]))
	default:
		return nil, invalid(KeyKind, fmt.Sprintf("unknown kind %q", string(kind)))
	}
}

func asEvent[T Event](e T, err error) (Event, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decodeCodes(r Record) (*DrmCodes, error) {
	rawMajor, hasMajor := r[KeyMajor]
	rawMinor, hasMinor := r[KeyMinor]
	if !hasMajor || !hasMinor {
		return nil, invalid("major/minor", "both codes required")
	}
	major, err := strconv.Atoi(rawMajor)
	if err != nil {
		return nil, invalid(KeyMajor, err.Error())
	}
	minor, err := strconv.Atoi(rawMinor)
	if err != nil {
		return nil, invalid(KeyMinor, err.Error())
	}
	return &DrmCodes{Major: major, Minor: minor}, nil
}

func putJSON(r Record, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	r[key] = string(b)
	return nil
}

func getJSON(r Record, key string, v any) error {
	raw, ok := r[key]
	if !ok {
		return invalid(key, "missing")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalid(key, err.Error())
	}
	return nil
}
