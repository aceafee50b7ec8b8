package protocol

import "fmt"

// Tag is the first byte of every record.
type Tag byte

const (
	TagUnknown Tag = 0
	TagData    Tag = 'D'
	TagTurnEnd Tag = 'T'
	TagStop    Tag = 'E'
)

func (t Tag) String() string {
	switch t {
	case TagData:
		return "data"
	case TagTurnEnd:
		return "turn_end"
	case TagStop:
		return "stop"
	default:
		return "unknown"
	}
}

const (
	// ValueCount is the number of floating fields in a Data record.
	ValueCount = 7
	// FlagCount is the number of integer flags in a Data record.
	FlagCount = 2
	// valuesBeforeFlags is how many values precede the flags on the wire.
	valuesBeforeFlags = 5

	// dataFieldCount counts the whitespace separated fields of a Data line, tag included.
	dataFieldCount = 1 + 2 + ValueCount + FlagCount
)

// Particle is the state update carried by one Data record.
type Particle struct {
	Turn   int
	ID     int
	Values [ValueCount]float64
	Flags  [FlagCount]int
}

// Record is one decoded protocol line.
type Record struct {
	Tag Tag
	// Turn is set for TurnEnd records and mirrors Particle.Turn for Data.
	Turn int
	// Numbered is false for a bare "T" sent by peers that omit the turn.
	Numbered bool
	Particle Particle
}

func DataRecord(p Particle) Record {
	return Record{Tag: TagData, Turn: p.Turn, Numbered: true, Particle: p}
}

func TurnEndRecord(turn int) Record {
	return Record{Tag: TagTurnEnd, Turn: turn, Numbered: true}
}

// BareTurnEndRecord is the unnumbered "T" form.
func BareTurnEndRecord() Record {
	return Record{Tag: TagTurnEnd}
}

func StopRecord() Record {
	return Record{Tag: TagStop}
}

func (r Record) String() string {
	line, err := Format(r)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", r.Tag, err)
	}
	return line
}
