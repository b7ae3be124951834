package blescan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/banshee-data/scale.report/internal/timeutil"
)

// fakePort serves scripted bytes, then simulates read timeouts that
// advance the scanner's clock so the scan window eventually closes.
type fakePort struct {
	data   *bytes.Reader
	clock  *timeutil.MockClock
	writes [][]byte
	closed bool
}

func newFakePort(clock *timeutil.MockClock, frames ...[]byte) *fakePort {
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	return &fakePort{data: bytes.NewReader(buf.Bytes()), clock: clock}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	n, err := p.data.Read(buf)
	if err == io.EOF {
		// Out of scripted data: behave like a timed-out serial read.
		p.clock.Advance(readTimeout)
		return 0, nil
	}
	return n, err
}

func (p *fakePort) Write(buf []byte) (int, error) {
	p.writes = append(p.writes, append([]byte(nil), buf...))
	return len(buf), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func newTestScanner(port *fakePort, clock *timeutil.MockClock, mac string) *UARTScanner {
	s := NewUARTScanner("/dev/ttyUSB0", 115200, mac, 20*time.Second, clock)
	s.open = func() (io.ReadWriteCloser, error) { return port, nil }
	return s
}

func TestUARTScanReturnsStabilizedPayload(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	want := scalePayload(0x26)
	port := newFakePort(clock,
		advFrame(testAddr, scalePayload(0x02)), // impedance but not stabilized
		advFrame(testAddr, want),
	)
	s := newTestScanner(port, clock, "88:22:b2:a7:ce:b6")

	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = % X, want % X", got, want)
	}
	if !port.closed {
		t.Error("port not closed after scan")
	}

	// Setup commands plus the scan-disable on the way out.
	if len(port.writes) != 4 {
		t.Fatalf("got %d writes, want 4", len(port.writes))
	}
	if !bytes.Equal(port.writes[0], resetCommand()) {
		t.Errorf("first write = % X, want reset", port.writes[0])
	}
	if !bytes.Equal(port.writes[3], scanEnableCommand(false)) {
		t.Errorf("last write = % X, want scan disable", port.writes[3])
	}
}

func TestUARTScanIgnoresOtherDevices(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	otherAddr := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	port := newFakePort(clock, advFrame(otherAddr, scalePayload(0x26)))
	s := newTestScanner(port, clock, "88:22:b2:a7:ce:b6")

	_, err := s.Scan(context.Background())
	if !errors.Is(err, ErrNoMeasurement) {
		t.Errorf("Scan() error = %v, want ErrNoMeasurement", err)
	}
}

func TestUARTScanWindowExpires(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	port := newFakePort(clock) // nothing on the air
	s := newTestScanner(port, clock, "")

	_, err := s.Scan(context.Background())
	if !errors.Is(err, ErrNoMeasurement) {
		t.Errorf("Scan() error = %v, want ErrNoMeasurement", err)
	}
}

func TestUARTScanResyncsOnGarbage(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	want := scalePayload(0x26)
	garbage := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	port := newFakePort(clock, garbage, advFrame(testAddr, want))
	s := newTestScanner(port, clock, "")

	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = % X, want % X", got, want)
	}
}

func TestUARTScanHonorsContext(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	port := newFakePort(clock)
	s := newTestScanner(port, clock, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestMockScanner(t *testing.T) {
	a, b := scalePayload(0x26), scalePayload(0x22)
	s := NewMockScanner(a)
	s.Enqueue(b)

	got, err := s.Scan(context.Background())
	if err != nil || !bytes.Equal(got, a) {
		t.Fatalf("first Scan() = % X, %v", got, err)
	}
	got, err = s.Scan(context.Background())
	if err != nil || !bytes.Equal(got, b) {
		t.Fatalf("second Scan() = % X, %v", got, err)
	}
	if _, err := s.Scan(context.Background()); !errors.Is(err, ErrNoMeasurement) {
		t.Errorf("drained Scan() error = %v, want ErrNoMeasurement", err)
	}
}
