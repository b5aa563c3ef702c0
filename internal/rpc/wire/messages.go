package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Price is one OHLCV observation on the wire. Timestamp is Unix seconds UTC.
type Price struct {
	InstrumentID string
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	Timestamp    int64
}

func (p *Price) AppendWire(b []byte) []byte {
	b = appendString(b, 1, p.InstrumentID)
	b = appendDouble(b, 2, p.Open)
	b = appendDouble(b, 3, p.High)
	b = appendDouble(b, 4, p.Low)
	b = appendDouble(b, 5, p.Close)
	b = appendInt64(b, 6, p.Volume)
	b = appendInt64(b, 7, p.Timestamp)
	return b
}

func (p *Price) ParseWire(b []byte) error {
	*p = Price{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &p.InstrumentID)
		case 2:
			return consumeDouble(num, b, &p.Open)
		case 3:
			return consumeDouble(num, b, &p.High)
		case 4:
			return consumeDouble(num, b, &p.Low)
		case 5:
			return consumeDouble(num, b, &p.Close)
		case 6:
			return consumeInt64(num, b, &p.Volume)
		case 7:
			return consumeInt64(num, b, &p.Timestamp)
		}
		return 0, nil
	})
}

// PriceList carries a batch of price records.
type PriceList struct {
	Prices []Price
}

func (l *PriceList) AppendWire(b []byte) []byte {
	for i := range l.Prices {
		b = appendMessage(b, 1, &l.Prices[i])
	}
	return b
}

func (l *PriceList) ParseWire(b []byte) error {
	l.Prices = nil
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var p Price
			n, err := consumeMessage(num, b, &p)
			if err != nil {
				return 0, err
			}
			l.Prices = append(l.Prices, p)
			return n, nil
		}
		return 0, nil
	})
}

// Ack acknowledges a mutation.
type Ack struct {
	OK      bool
	Message string
}

func (a *Ack) AppendWire(b []byte) []byte {
	b = appendBool(b, 1, a.OK)
	b = appendString(b, 2, a.Message)
	return b
}

func (a *Ack) ParseWire(b []byte) error {
	*a = Ack{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeBool(num, b, &a.OK)
		case 2:
			return consumeString(num, b, &a.Message)
		}
		return 0, nil
	})
}

// Count reports how many records a mutation affected.
type Count struct {
	N int64
}

func (c *Count) AppendWire(b []byte) []byte {
	return appendInt64(b, 1, c.N)
}

func (c *Count) ParseWire(b []byte) error {
	*c = Count{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeInt64(num, b, &c.N)
		}
		return 0, nil
	})
}

// Presence reports whether a frame is cached.
type Presence struct {
	Present bool
}

func (p *Presence) AppendWire(b []byte) []byte {
	return appendBool(b, 1, p.Present)
}

func (p *Presence) ParseWire(b []byte) error {
	*p = Presence{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeBool(num, b, &p.Present)
		}
		return 0, nil
	})
}

// SystemInstrumentRequest addresses one (system, instrument) pair. Either
// field may be empty where the operation allows it.
type SystemInstrumentRequest struct {
	SystemID     string
	InstrumentID string
}

func (r *SystemInstrumentRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.SystemID)
	b = appendString(b, 2, r.InstrumentID)
	return b
}

func (r *SystemInstrumentRequest) ParseWire(b []byte) error {
	*r = SystemInstrumentRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.SystemID)
		case 2:
			return consumeString(num, b, &r.InstrumentID)
		}
		return 0, nil
	})
}

// MinimumRowsRequest sets the minimum frame length a system needs.
type MinimumRowsRequest struct {
	SystemID string
	Rows     int64
}

func (r *MinimumRowsRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.SystemID)
	b = appendInt64(b, 2, r.Rows)
	return b
}

func (r *MinimumRowsRequest) ParseWire(b []byte) error {
	*r = MinimumRowsRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.SystemID)
		case 2:
			return consumeInt64(num, b, &r.Rows)
		}
		return 0, nil
	})
}

// FrameRequest asks for an instrument's tabular bars, optionally limited to
// the latest NRows and with named columns excluded.
type FrameRequest struct {
	SystemID     string
	InstrumentID string
	NRows        int64
	Exclude      []string
}

func (r *FrameRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.SystemID)
	b = appendString(b, 2, r.InstrumentID)
	b = appendInt64(b, 3, r.NRows)
	for _, col := range r.Exclude {
		b = appendString(b, 4, col)
	}
	return b
}

func (r *FrameRequest) ParseWire(b []byte) error {
	*r = FrameRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.SystemID)
		case 2:
			return consumeString(num, b, &r.InstrumentID)
		case 3:
			return consumeInt64(num, b, &r.NRows)
		case 4:
			var col string
			n, err := consumeString(num, b, &col)
			if err != nil {
				return 0, err
			}
			r.Exclude = append(r.Exclude, col)
			return n, nil
		}
		return 0, nil
	})
}

// Instrument is a tradeable security on the wire.
type Instrument struct {
	ID       string
	Symbol   string
	Exchange string
	Sector   string
}

func (i *Instrument) AppendWire(b []byte) []byte {
	b = appendString(b, 1, i.ID)
	b = appendString(b, 2, i.Symbol)
	b = appendString(b, 3, i.Exchange)
	b = appendString(b, 4, i.Sector)
	return b
}

func (i *Instrument) ParseWire(b []byte) error {
	*i = Instrument{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &i.ID)
		case 2:
			return consumeString(num, b, &i.Symbol)
		case 3:
			return consumeString(num, b, &i.Exchange)
		case 4:
			return consumeString(num, b, &i.Sector)
		}
		return 0, nil
	})
}

// InstrumentList carries a batch of instruments.
type InstrumentList struct {
	Instruments []Instrument
}

func (l *InstrumentList) AppendWire(b []byte) []byte {
	for i := range l.Instruments {
		b = appendMessage(b, 1, &l.Instruments[i])
	}
	return b
}

func (l *InstrumentList) ParseWire(b []byte) error {
	l.Instruments = nil
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var inst Instrument
			n, err := consumeMessage(num, b, &inst)
			if err != nil {
				return 0, err
			}
			l.Instruments = append(l.Instruments, inst)
			return n, nil
		}
		return 0, nil
	})
}

// Exchange is a listing venue on the wire.
type Exchange struct {
	ID       string
	Name     string
	Currency string
}

func (e *Exchange) AppendWire(b []byte) []byte {
	b = appendString(b, 1, e.ID)
	b = appendString(b, 2, e.Name)
	b = appendString(b, 3, e.Currency)
	return b
}

func (e *Exchange) ParseWire(b []byte) error {
	*e = Exchange{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &e.ID)
		case 2:
			return consumeString(num, b, &e.Name)
		case 3:
			return consumeString(num, b, &e.Currency)
		}
		return 0, nil
	})
}

// ExchangeList carries a batch of exchanges.
type ExchangeList struct {
	Exchanges []Exchange
}

func (l *ExchangeList) AppendWire(b []byte) []byte {
	for i := range l.Exchanges {
		b = appendMessage(b, 1, &l.Exchanges[i])
	}
	return b
}

func (l *ExchangeList) ParseWire(b []byte) error {
	l.Exchanges = nil
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			var ex Exchange
			n, err := consumeMessage(num, b, &ex)
			if err != nil {
				return 0, err
			}
			l.Exchanges = append(l.Exchanges, ex)
			return n, nil
		}
		return 0, nil
	})
}

// NameRequest addresses an entity by a single name or identifier.
type NameRequest struct {
	Name string
}

func (r *NameRequest) AppendWire(b []byte) []byte {
	return appendString(b, 1, r.Name)
}

func (r *NameRequest) ParseWire(b []byte) error {
	*r = NameRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeString(num, b, &r.Name)
		}
		return 0, nil
	})
}

// DateTimeBound selects which end of an instrument's stored range to fetch.
type DateTimeBound int64

// DateTimeBound values.
const (
	BoundMin DateTimeBound = 0
	BoundMax DateTimeBound = 1
)

// DateTimeRequest asks for the earliest or latest stored timestamp of an
// instrument.
type DateTimeRequest struct {
	InstrumentID string
	Bound        DateTimeBound
}

func (r *DateTimeRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.InstrumentID)
	b = appendInt64(b, 2, int64(r.Bound))
	return b
}

func (r *DateTimeRequest) ParseWire(b []byte) error {
	*r = DateTimeRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.InstrumentID)
		case 2:
			var v int64
			n, err := consumeInt64(num, b, &v)
			if err != nil {
				return 0, err
			}
			r.Bound = DateTimeBound(v)
			return n, nil
		}
		return 0, nil
	})
}

// DateTimeResponse carries one timestamp as Unix seconds UTC. Zero means
// "no data".
type DateTimeResponse struct {
	Unix int64
}

func (r *DateTimeResponse) AppendWire(b []byte) []byte {
	return appendInt64(b, 1, r.Unix)
}

func (r *DateTimeResponse) ParseWire(b []byte) error {
	*r = DateTimeResponse{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return consumeInt64(num, b, &r.Unix)
		}
		return 0, nil
	})
}

// LastDateRequest asks for the most recent date both symbols have a bar on.
type LastDateRequest struct {
	Symbol1 string
	Symbol2 string
}

func (r *LastDateRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.Symbol1)
	b = appendString(b, 2, r.Symbol2)
	return b
}

func (r *LastDateRequest) ParseWire(b []byte) error {
	*r = LastDateRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.Symbol1)
		case 2:
			return consumeString(num, b, &r.Symbol2)
		}
		return 0, nil
	})
}

// PriceDataRequest asks for an instrument's bars in [Start, End], Unix
// seconds UTC.
type PriceDataRequest struct {
	InstrumentID string
	Start        int64
	End          int64
}

func (r *PriceDataRequest) AppendWire(b []byte) []byte {
	b = appendString(b, 1, r.InstrumentID)
	b = appendInt64(b, 2, r.Start)
	b = appendInt64(b, 3, r.End)
	return b
}

func (r *PriceDataRequest) ParseWire(b []byte) error {
	*r = PriceDataRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, b, &r.InstrumentID)
		case 2:
			return consumeInt64(num, b, &r.Start)
		case 3:
			return consumeInt64(num, b, &r.End)
		}
		return 0, nil
	})
}
