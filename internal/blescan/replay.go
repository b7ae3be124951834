package blescan

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/scale.report/internal/packet"
)

// ReplayScanner replays H4-framed HCI captures from a pcap file, running
// the same frame matching as the live UART scanner. Useful for debugging
// a capture taken next to a misbehaving scale.
type ReplayScanner struct {
	file   *os.File
	reader *pcapgo.Reader
	mac    string
}

// NewReplayScanner opens a capture file. The capture must use the
// Bluetooth HCI H4 link type.
func NewReplayScanner(path, mac string) (*ReplayScanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if r.LinkType() != layers.LinkTypeBluetoothHCIH4 {
		f.Close()
		return nil, fmt.Errorf("capture link type %s, want %s", r.LinkType(), layers.LinkTypeBluetoothHCIH4)
	}

	return &ReplayScanner{file: f, reader: r, mac: mac}, nil
}

// Scan returns the next stabilized impedance-carrying payload in the
// capture, or ErrScannerClosed once the capture is exhausted.
func (s *ReplayScanner) Scan(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, _, err := s.reader.ReadPacketData()
		if err == io.EOF {
			return nil, ErrScannerClosed
		}
		if err != nil {
			return nil, fmt.Errorf("read capture packet: %w", err)
		}

		if payload := s.match(data); payload != nil {
			return payload, nil
		}
	}
}

func (s *ReplayScanner) match(frame []byte) []byte {
	evt, ok := parseEvent(frame)
	if !ok || evt.code != evtLEMeta {
		return nil
	}
	for _, report := range parseAdvReports(evt.params) {
		if !matchesAddr(report.addr, s.mac) {
			continue
		}
		payload := serviceData(report.data, packet.ServiceUUID16)
		if payload == nil || !packet.Stabilized(payload) || !packet.HasImpedance(payload) {
			continue
		}
		return payload
	}
	return nil
}

// Close releases the capture file.
func (s *ReplayScanner) Close() error {
	return s.file.Close()
}
