package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// SystemRequest identifies a trading system by name, carrying the datetime
// to seed a freshly inserted record with. Unix is seconds UTC, 0 for zero
// time.
type SystemRequest struct {
	Name string
	Unix int64
}

func (r *SystemRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.Name)
	b = appendInt64(b, 2, r.Unix)
	return b
}

func (r *SystemRequest) ParseWire(b []byte) error {
	*r = SystemRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.Name)
		case 2:
			return consumeInt64(num, b, &r.Unix)
		}
		return 0, nil
	})
}

// SystemRecord is a stored trading-system identity.
type SystemRecord struct {
	ID   string
	Name string
	Unix int64
}

func (r *SystemRecord) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.ID)
	b = appendString(b, 2, r.Name)
	b = appendInt64(b, 3, r.Unix)
	return b
}

func (r *SystemRecord) ParseWire(b []byte) error {
	*r = SystemRecord{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.ID)
		case 2:
			return consumeString(num, b, &r.Name)
		case 3:
			return consumeInt64(num, b, &r.Unix)
		}
		return 0, nil
	})
}

// SystemDateTime carries a system's processed-through marker.
type SystemDateTime struct {
	SystemID string
	Unix     int64
}

func (r *SystemDateTime) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.SystemID)
	b = appendInt64(b, 2, r.Unix)
	return b
}

func (r *SystemDateTime) ParseWire(b []byte) error {
	*r = SystemDateTime{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.SystemID)
		case 2:
			return consumeInt64(num, b, &r.Unix)
		}
		return 0, nil
	})
}

// SystemDocument carries a JSON document attached to a system (metrics or
// position-sizer summaries).
type SystemDocument struct {
	SystemID string
	JSON     []byte
}

func (d *SystemDocument) AppendWire(b []byte) []byte {
	b = appendString(b, 1, d.SystemID)
	b = appendBytes(b, 2, d.JSON)
	return b
}

func (d *SystemDocument) ParseWire(b []byte) error {
	*d = SystemDocument{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &d.SystemID)
		case 2:
			return consumeBytes(num, b, &d.JSON)
		}
		return 0, nil
	})
}

// MarketStateRecord is one instrument's latest market state.
type MarketStateRecord struct {
	InstrumentID     string
	Symbol           string
	SignalUnix       int64
	OrderBlob        []byte
	Periods          int64
	UnrealisedReturn string
	MarketState      string
}

func (r *MarketStateRecord) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.InstrumentID)
	b = appendString(b, 2, r.Symbol)
	b = appendInt64(b, 3, r.SignalUnix)
	b = appendBytes(b, 4, r.OrderBlob)
	b = appendInt64(b, 5, r.Periods)
	b = appendString(b, 6, r.UnrealisedReturn)
	b = appendString(b, 7, r.MarketState)
	return b
}

func (r *MarketStateRecord) ParseWire(b []byte) error {
	*r = MarketStateRecord{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.InstrumentID)
		case 2:
			return consumeString(num, b, &r.Symbol)
		case 3:
			return consumeInt64(num, b, &r.SignalUnix)
		case 4:
			return consumeBytes(num, b, &r.OrderBlob)
		case 5:
			return consumeInt64(num, b, &r.Periods)
		case 6:
			return consumeString(num, b, &r.UnrealisedReturn)
		case 7:
			return consumeString(num, b, &r.MarketState)
		}
		return 0, nil
	})
}

// MarketStateUpsert writes one market-state record for a system.
type MarketStateUpsert struct {
	SystemID string
	Record   MarketStateRecord
}

func (u *MarketStateUpsert) AppendWire(b []byte) []byte {
	b = appendString(b, 1, u.SystemID)
	b = appendMessage(b, 2, &u.Record)
	return b
}

func (u *MarketStateUpsert) ParseWire(b []byte) error {
	*u = MarketStateUpsert{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &u.SystemID)
		case 2:
			return consumeMessage(num, b, &u.Record)
		}
		return 0, nil
	})
}

// MarketStateList is every stored market state of a system.
type MarketStateList struct {
	Records []MarketStateRecord
}

func (l *MarketStateList) AppendWire(b []byte) []byte {
	for i := range l.Records {
		b = appendMessage(b, 1, &l.Records[i])
	}
	return b
}

func (l *MarketStateList) ParseWire(b []byte) error {
	*l = MarketStateList{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var rec MarketStateRecord
			n, err := consumeMessage(num, b, &rec)
			if err != nil {
				return 0, err
			}
			l.Records = append(l.Records, rec)
			return n, nil
		}
		return 0, nil
	})
}

// Blob carries one opaque encoded value (an order, position, or model).
type Blob struct {
	Data []byte
}

func (m *Blob) AppendWire(b []byte) []byte {
	return appendBytes(b, 1, m.Data)
}

func (m *Blob) ParseWire(b []byte) error {
	*m = Blob{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBytes(num, b, &m.Data)
		}
		return 0, nil
	})
}

// BlobUpsert writes one opaque blob for a (system, instrument) pair. An
// empty Data clears the stored value.
type BlobUpsert struct {
	SystemID     string
	InstrumentID string
	Data         []byte
}

func (u *BlobUpsert) AppendWire(b []byte) []byte {
	b = appendString(b, 1, u.SystemID)
	b = appendString(b, 2, u.InstrumentID)
	b = appendBytes(b, 3, u.Data)
	return b
}

func (u *BlobUpsert) ParseWire(b []byte) error {
	*u = BlobUpsert{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &u.SystemID)
		case 2:
			return consumeString(num, b, &u.InstrumentID)
		case 3:
			return consumeBytes(num, b, &u.Data)
		}
		return 0, nil
	})
}

// PositionListUpsert replaces a (system, instrument) position history.
type PositionListUpsert struct {
	SystemID     string
	InstrumentID string
	Blobs        [][]byte
	NumOfPeriods int64
}

func (u *PositionListUpsert) AppendWire(b []byte) []byte {
	b = appendString(b, 1, u.SystemID)
	b = appendString(b, 2, u.InstrumentID)
	for _, blob := range u.Blobs {
		b = appendBytes(b, 3, blob)
	}
	b = appendInt64(b, 4, u.NumOfPeriods)
	return b
}

func (u *PositionListUpsert) ParseWire(b []byte) error {
	*u = PositionListUpsert{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &u.SystemID)
		case 2:
			return consumeString(num, b, &u.InstrumentID)
		case 3:
			var blob []byte
			n, err := consumeBytes(num, b, &blob)
			if err != nil {
				return 0, err
			}
			u.Blobs = append(u.Blobs, blob)
			return n, nil
		case 4:
			return consumeInt64(num, b, &u.NumOfPeriods)
		}
		return 0, nil
	})
}

// PositionListResponse is a stored position history and its period count.
type PositionListResponse struct {
	Blobs        [][]byte
	NumOfPeriods int64
}

func (r *PositionListResponse) AppendWire(b []byte) []byte {
	for _, blob := range r.Blobs {
		b = appendBytes(b, 1, blob)
	}
	b = appendInt64(b, 2, r.NumOfPeriods)
	return b
}

func (r *PositionListResponse) ParseWire(b []byte) error {
	*r = PositionListResponse{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var blob []byte
			n, err := consumeBytes(num, b, &blob)
			if err != nil {
				return 0, err
			}
			r.Blobs = append(r.Blobs, blob)
			return n, nil
		case 2:
			return consumeInt64(num, b, &r.NumOfPeriods)
		}
		return 0, nil
	})
}

// PositionsQuery asks for a system's latest positions across instruments.
type PositionsQuery struct {
	SystemID string
	N        int64
}

func (q *PositionsQuery) AppendWire(b []byte) []byte {
	b = appendString(b, 1, q.SystemID)
	b = appendInt64(b, 2, q.N)
	return b
}

func (q *PositionsQuery) ParseWire(b []byte) error {
	*q = PositionsQuery{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &q.SystemID)
		case 2:
			return consumeInt64(num, b, &q.N)
		}
		return 0, nil
	})
}

// IncrementRequest adds to an instrument's period counter.
type IncrementRequest struct {
	SystemID     string
	InstrumentID string
	N            int64
}

func (r *IncrementRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.SystemID)
	b = appendString(b, 2, r.InstrumentID)
	b = appendInt64(b, 3, r.N)
	return b
}

func (r *IncrementRequest) ParseWire(b []byte) error {
	*r = IncrementRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.SystemID)
		case 2:
			return consumeString(num, b, &r.InstrumentID)
		case 3:
			return consumeInt64(num, b, &r.N)
		}
		return 0, nil
	})
}
