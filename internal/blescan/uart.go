package blescan

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/scale.report/internal/monitoring"
	"github.com/banshee-data/scale.report/internal/packet"
	"github.com/banshee-data/scale.report/internal/timeutil"
)

// readTimeout bounds a single serial read so the scan loop can notice
// context cancellation and the end of its window.
const readTimeout = 250 * time.Millisecond

// UARTScanner drives a Bluetooth adapter in H4 framing over a serial
// device. Each Scan opens the port, enables passive LE scanning, and
// reads advertising reports for one window.
type UARTScanner struct {
	portName string
	baudRate int
	mac      string
	window   time.Duration
	clock    timeutil.Clock

	// open is swappable for tests.
	open func() (io.ReadWriteCloser, error)
}

// NewUARTScanner returns a scanner over the given serial device. An empty
// mac accepts frames from any scale.
func NewUARTScanner(portName string, baudRate int, mac string, window time.Duration, clock timeutil.Clock) *UARTScanner {
	s := &UARTScanner{
		portName: portName,
		baudRate: baudRate,
		mac:      mac,
		window:   window,
		clock:    clock,
	}
	s.open = s.openPort
	return s
}

func (s *UARTScanner) openPort() (io.ReadWriteCloser, error) {
	mode := &serial.Mode{BaudRate: s.baudRate}
	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.portName, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

// Scan runs one scan window and returns the first stabilized
// impedance-carrying payload from the target device, or ErrNoMeasurement
// when the window ends quietly.
func (s *UARTScanner) Scan(ctx context.Context) ([]byte, error) {
	port, err := s.open()
	if err != nil {
		return nil, err
	}
	defer port.Close()

	// Command Complete events are read back as part of the normal frame
	// loop; some adapters drop them under load, so they are not awaited.
	for _, cmd := range [][]byte{resetCommand(), scanParamsCommand(), scanEnableCommand(true)} {
		if _, err := port.Write(cmd); err != nil {
			return nil, fmt.Errorf("write hci command: %w", err)
		}
	}
	defer port.Write(scanEnableCommand(false))

	start := s.clock.Now()
	r := &frameReader{port: port}

	for s.clock.Since(start) < s.window {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := r.next()
		if err == errReadTimeout {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read hci frame: %w", err)
		}

		if payload := s.match(frame); payload != nil {
			return payload, nil
		}
	}
	return nil, ErrNoMeasurement
}

// match extracts a usable scale payload from one H4 frame, or nil.
func (s *UARTScanner) match(frame []byte) []byte {
	evt, ok := parseEvent(frame)
	if !ok || evt.code != evtLEMeta {
		return nil
	}

	for _, report := range parseAdvReports(evt.params) {
		if !matchesAddr(report.addr, s.mac) {
			continue
		}
		payload := serviceData(report.data, packet.ServiceUUID16)
		if payload == nil {
			continue
		}
		if !packet.Stabilized(payload) || !packet.HasImpedance(payload) {
			monitoring.Debugf("blescan: transient frame from %s, waiting for stabilized reading", formatAddr(report.addr))
			continue
		}
		monitoring.Logf("blescan: stabilized measurement from %s", formatAddr(report.addr))
		return payload
	}
	return nil
}

var errReadTimeout = fmt.Errorf("serial read timeout")

// frameReader reassembles H4 frames from a byte stream, resynchronizing
// on anything that is not an event packet.
type frameReader struct {
	port io.Reader
}

// next reads one H4 event frame. A timed-out read (zero bytes) surfaces
// as errReadTimeout so the caller can re-check its window.
func (r *frameReader) next() ([]byte, error) {
	typ, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if typ != h4Event {
		// Garbage or an unsupported packet type; skip one byte to resync.
		return nil, errReadTimeout
	}

	header := make([]byte, 2)
	if err := r.readFull(header); err != nil {
		return nil, err
	}
	params := make([]byte, int(header[1]))
	if err := r.readFull(params); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 3+len(params))
	frame = append(frame, h4Event, header[0], header[1])
	return append(frame, params...), nil
}

func (r *frameReader) readByte() (byte, error) {
	buf := make([]byte, 1)
	n, err := r.port.Read(buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errReadTimeout
	}
	return buf[0], nil
}

// readFull reads exactly len(buf) bytes, tolerating the port's short
// timed-out reads mid-frame. A frame that stalls for several consecutive
// timeouts is abandoned so the scan loop can re-check its window.
func (r *frameReader) readFull(buf []byte) error {
	read := 0
	stalls := 0
	for read < len(buf) {
		n, err := r.port.Read(buf[read:])
		if err != nil {
			return err
		}
		if n == 0 {
			if stalls++; stalls >= 4 {
				return errReadTimeout
			}
			continue
		}
		stalls = 0
		read += n
	}
	return nil
}
