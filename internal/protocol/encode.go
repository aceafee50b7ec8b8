package protocol

import (
	"fmt"
	"strconv"
)

// Format renders r as one line without the terminator.
func Format(r Record) (string, error) {
	b, err := AppendRecord(make([]byte, 0, 160), r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AppendRecord appends the line form of r to dst.
func AppendRecord(dst []byte, r Record) ([]byte, error) {
	switch r.Tag {
	case TagData:
		return appendData(dst, r.Particle), nil
	case TagTurnEnd:
		dst = append(dst, byte(TagTurnEnd))
		if r.Numbered {
			dst = append(dst, ' ')
			dst = strconv.AppendInt(dst, int64(r.Turn), 10)
		}
		return dst, nil
	case TagStop:
		return append(dst, byte(TagStop)), nil
	default:
		return dst, fmt.Errorf("%w: %q", ErrUnknownTag, byte(r.Tag))
	}
}

// appendData writes "D turn id v0..v4 flag0 flag1 v5 v6".
func appendData(dst []byte, p Particle) []byte {
	dst = append(dst, byte(TagData), ' ')
	dst = strconv.AppendInt(dst, int64(p.Turn), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(p.ID), 10)
	for i := 0; i < valuesBeforeFlags; i++ {
		dst = appendValue(dst, p.Values[i])
	}
	for _, f := range p.Flags {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(f), 10)
	}
	for i := valuesBeforeFlags; i < ValueCount; i++ {
		dst = appendValue(dst, p.Values[i])
	}
	return dst
}

func appendValue(dst []byte, v float64) []byte {
	dst = append(dst, ' ')
	return strconv.AppendFloat(dst, v, 'e', 6, 64)
}
