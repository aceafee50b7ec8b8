package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Classify reports the tag of line from its first byte only; the payload is
// not validated.
func Classify(line string) Tag {
	if line == "" {
		return TagUnknown
	}
	switch t := Tag(line[0]); t {
	case TagData, TagTurnEnd, TagStop:
		return t
	default:
		return TagUnknown
	}
}

// Parse decodes one line (terminator already stripped).
func Parse(line string) (Record, error) {
	if strings.TrimSpace(line) == "" {
		return Record{}, ErrEmptyRecord
	}
	fields := strings.Fields(line)
	if len(fields[0]) != 1 {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownTag, fields[0])
	}
	switch Tag(fields[0][0]) {
	case TagData:
		p, err := parseData(fields)
		if err != nil {
			return Record{}, err
		}
		return DataRecord(p), nil
	case TagTurnEnd:
		return parseTurnEnd(fields)
	case TagStop:
		if len(fields) != 1 {
			return Record{}, fmt.Errorf("%w: stop takes no fields, got %d", ErrFieldCount, len(fields)-1)
		}
		return StopRecord(), nil
	default:
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownTag, fields[0])
	}
}

func parseTurnEnd(fields []string) (Record, error) {
	switch len(fields) {
	case 1:
		return BareTurnEndRecord(), nil
	case 2:
		turn, err := strconv.Atoi(fields[1])
		if err != nil {
			return Record{}, fmt.Errorf("%w: turn %q: %v", ErrMalformedRecord, fields[1], err)
		}
		return TurnEndRecord(turn), nil
	default:
		return Record{}, fmt.Errorf("%w: turn end takes at most one field, got %d", ErrFieldCount, len(fields)-1)
	}
}

func parseData(fields []string) (Particle, error) {
	var p Particle
	if len(fields) != dataFieldCount {
		return p, fmt.Errorf("%w: data wants %d fields, got %d", ErrFieldCount, dataFieldCount-1, len(fields)-1)
	}
	var err error
	if p.Turn, err = parseInt("turn", fields[1]); err != nil {
		return p, err
	}
	if p.ID, err = parseInt("id", fields[2]); err != nil {
		return p, err
	}
	pos := 3
	for i := 0; i < valuesBeforeFlags; i++ {
		if p.Values[i], err = parseValue(i, fields[pos]); err != nil {
			return p, err
		}
		pos++
	}
	for i := range p.Flags {
		if p.Flags[i], err = parseInt(fmt.Sprintf("flag%d", i+1), fields[pos]); err != nil {
			return p, err
		}
		pos++
	}
	for i := valuesBeforeFlags; i < ValueCount; i++ {
		if p.Values[i], err = parseValue(i, fields[pos]); err != nil {
			return p, err
		}
		pos++
	}
	return p, nil
}

func parseInt(name, raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrMalformedRecord, name, raw, err)
	}
	return v, nil
}

func parseValue(i int, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value %d %q: %v", ErrMalformedRecord, i+1, raw, err)
	}
	return v, nil
}
