package hal

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/frame"
)

// nibbleLUT encodes each 2-bit group of a WS281x data byte into one SPI
// output byte clocked at 3.2MHz, so the SPI peripheral's own shift
// register reproduces the one-wire 800kHz bit timing without any
// busy-waiting on the CPU. Values reverse-engineered from periph's own
// ws2812b encoder: 00->0x88, 01->0x8E, 10->0xE8, 11->0xEE.
var nibbleLUT = [4]byte{0x88, 0x8E, 0xE8, 0xEE}

// spiBusSpeed is the clock rate the LUT above assumes.
const spiBusSpeed = 3200 * physic.KiloHertz

// encodeByte expands one WS281x data byte into 4 SPI bytes (2 bits in,
// 1 byte out, per pair).
func encodeByte(b byte, out []byte) {
	out[0] = nibbleLUT[(b>>6)&0x3]
	out[1] = nibbleLUT[(b>>4)&0x3]
	out[2] = nibbleLUT[(b>>2)&0x3]
	out[3] = nibbleLUT[b&0x3]
}

// PeriphDriver drives a WS281x strip over SPI MOSI using the bit-encoding
// above; the reset gap is just trailing zero bytes on the bus.
type PeriphDriver struct {
	conn  spi.Conn
	order ColorOrder
	buf   []byte // reused across Apply calls to avoid per-tick allocation
}

// NewPeriphDriver opens port at the fixed LUT clock rate and returns a
// driver ready for Apply.
func NewPeriphDriver(port spi.Port, order ColorOrder) (*PeriphDriver, error) {
	conn, err := port.Connect(spiBusSpeed, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("periph: spi connect: %w", err)
	}
	return &PeriphDriver{conn: conn, order: order}, nil
}

// Apply encodes every pixel's 3 wire-ordered bytes into 12 SPI bytes
// each, appends a reset gap, and writes the whole buffer in one
// transaction.
func (d *PeriphDriver) Apply(pixels []color.RGB) frame.Result {
	needed := len(pixels)*12 + 3
	if cap(d.buf) < needed {
		d.buf = make([]byte, needed)
	}
	d.buf = d.buf[:needed]

	pos := 0
	for _, px := range pixels {
		bytes := orderBytes(px, d.order)
		for _, b := range bytes {
			encodeByte(b, d.buf[pos:pos+4])
			pos += 4
		}
	}
	for i := pos; i < needed; i++ {
		d.buf[i] = 0x00
	}

	if err := d.conn.Tx(d.buf, nil); err != nil {
		return classifyErr(fmt.Errorf("periph: spi tx: %w", err), false)
	}
	return frame.Result{Class: frame.FailureNone}
}

// Shutdown sends an all-black frame sized to the last applied buffer so
// the strip goes dark before the connection is dropped; periph's
// spi.Conn has no explicit close.
func (d *PeriphDriver) Shutdown() {
	if len(d.buf) < 3 {
		return
	}
	d.Apply(make([]color.RGB, (len(d.buf)-3)/12))
}
