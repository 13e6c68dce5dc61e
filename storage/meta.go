package storage

import (
	"fmt"
	"time"

	"github.com/tinylib/msgp/msgp"
)

// LayerMeta is the non-volume part of a LayerRecord.
type LayerMeta struct {
	Name      string
	Kind      string
	Version   uint64
	Saved     time.Time
	HasVolume bool
	Points    [][]float64
}

// Meta returns the metadata of a record.
func (r LayerRecord) Meta() LayerMeta {
	return LayerMeta{
		Name:      r.Name,
		Kind:      r.Kind,
		Version:   r.Version,
		Saved:     r.Saved,
		HasVolume: r.Volume != nil,
		Points:    r.Points,
	}
}

// MarshalMsg appends the MessagePack encoding of the metadata to b.
func (m LayerMeta) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "name")
	b = msgp.AppendString(b, m.Name)
	b = msgp.AppendString(b, "kind")
	b = msgp.AppendString(b, m.Kind)
	b = msgp.AppendString(b, "version")
	b = msgp.AppendUint64(b, m.Version)
	b = msgp.AppendString(b, "saved")
	b = msgp.AppendTime(b, m.Saved)
	b = msgp.AppendString(b, "hasvol")
	b = msgp.AppendBool(b, m.HasVolume)
	b = msgp.AppendString(b, "points")
	b = msgp.AppendArrayHeader(b, uint32(len(m.Points)))
	for _, pt := range m.Points {
		b = msgp.AppendArrayHeader(b, uint32(len(pt)))
		for _, c := range pt {
			b = msgp.AppendFloat64(b, c)
		}
	}
	return b, nil
}

// UnmarshalMsg decodes metadata from b and returns the remaining bytes.
func (m *LayerMeta) UnmarshalMsg(b []byte) (o []byte, err error) {
	var fields uint32
	if fields, b, err = msgp.ReadMapHeaderBytes(b); err != nil {
		return nil, fmt.Errorf("bad layer metadata: %w", err)
	}
	for ; fields > 0; fields-- {
		var key string
		if key, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, err
		}
		switch key {
		case "name":
			m.Name, b, err = msgp.ReadStringBytes(b)
		case "kind":
			m.Kind, b, err = msgp.ReadStringBytes(b)
		case "version":
			m.Version, b, err = msgp.ReadUint64Bytes(b)
		case "saved":
			m.Saved, b, err = msgp.ReadTimeBytes(b)
		case "hasvol":
			m.HasVolume, b, err = msgp.ReadBoolBytes(b)
		case "points":
			b, err = m.unmarshalPoints(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return nil, fmt.Errorf("bad layer metadata field %q: %w", key, err)
		}
	}
	return b, nil
}

func (m *LayerMeta) unmarshalPoints(b []byte) (o []byte, err error) {
	var n uint32
	if n, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
		return nil, err
	}
	m.Points = make([][]float64, n)
	for i := range m.Points {
		var dims uint32
		if dims, b, err = msgp.ReadArrayHeaderBytes(b); err != nil {
			return nil, err
		}
		pt := make([]float64, dims)
		for j := range pt {
			if pt[j], b, err = msgp.ReadFloat64Bytes(b); err != nil {
				return nil, err
			}
		}
		m.Points[i] = pt
	}
	return b, nil
}
