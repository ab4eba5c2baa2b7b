package sx1276

// Event is something the radio reports asynchronously. The concrete types are
// TxDone, TxTimeout, RxDone, RxTimeout, RxError, FhssChangeChannel and CadDone.
type Event interface {
	isEvent()
}

// TxDone is emitted when a packet has been transmitted.
type TxDone struct{}

// TxTimeout is emitted when a transmission didn't complete within TxConfig.Timeout.
type TxTimeout struct{}

// RxDone carries a received packet. The consumer owns Packet and must call
// Packet.Release once it is done with the content.
type RxDone struct {
	Packet *RxPacket
}

// RxTimeout is emitted when nothing was received in time.
type RxTimeout struct{}

// RxError reports a failed reception. Err is ErrCRC or ErrNoRxBuffer.
type RxError struct {
	Reason string
	Err    error
}

// FhssChangeChannel asks the consumer to hop to the next channel.
type FhssChangeChannel struct {
	Channel uint32 // current hop channel index
}

// CadDone reports the result of channel activity detection.
type CadDone struct {
	Detected bool
}

func (TxDone) isEvent()            {}
func (TxTimeout) isEvent()         {}
func (RxDone) isEvent()            {}
func (RxTimeout) isEvent()         {}
func (RxError) isEvent()           {}
func (FhssChangeChannel) isEvent() {}
func (CadDone) isEvent()           {}

// RxPacket is a received packet with stats.
type RxPacket struct {
	SNR     int8   // signal-to-noise in dB
	RSSI    int16  // rssi in dBm
	Size    uint8  // payload length
	Content []byte // payload, valid until Release

	pool *bufferPool
	buf  []byte
}

// Release hands the packet's buffer back to the driver. Content must not be used
// afterwards. Release is a no-op on an already released packet.
func (p *RxPacket) Release() {
	if p == nil || p.buf == nil {
		return
	}
	p.pool.put(p.buf)
	p.buf, p.Content = nil, nil
}

// bufferPool is a fixed set of receive buffers. When all of them are held by the
// consumer further packets are dropped rather than allocating without bound.
type bufferPool struct {
	free chan []byte
}

func newBufferPool(n, size int) *bufferPool {
	p := &bufferPool{free: make(chan []byte, n)}
	for i := 0; i < n; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

func (p *bufferPool) get() ([]byte, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
		return nil, ErrNoRxBuffer
	}
}

func (p *bufferPool) put(b []byte) {
	select {
	case p.free <- b[:cap(b)]:
	default:
	}
}

// Events returns the channel events are delivered on. Events are dropped when the
// channel is full. The channel is closed by Close.
func (d *Device) Events() <-chan Event {
	return d.events
}

// emit delivers ev without blocking. A dropped RxDone releases its buffer.
func (d *Device) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.log("sx1276: event queue full, dropping %T", ev)
		if rx, ok := ev.(RxDone); ok {
			rx.Packet.Release()
		}
	}
}
