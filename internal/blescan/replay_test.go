package blescan

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func writeCapture(t *testing.T, linkType layers.LinkType, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, linkType); err != nil {
		t.Fatal(err)
	}
	ts := time.Unix(1700000000, 0)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Second),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		if err := w.WritePacket(ci, frame); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestReplayScan(t *testing.T) {
	want := scalePayload(0x26)
	path := writeCapture(t, layers.LinkTypeBluetoothHCIH4,
		advFrame(testAddr, scalePayload(0x02)), // transient, skipped
		advFrame(testAddr, want),
	)

	s, err := NewReplayScanner(path, "88:22:b2:a7:ce:b6")
	if err != nil {
		t.Fatalf("NewReplayScanner() error = %v", err)
	}
	defer s.Close()

	got, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("payload = % X, want % X", got, want)
	}

	// End of capture is permanent exhaustion, not a quiet window.
	if _, err := s.Scan(context.Background()); !errors.Is(err, ErrScannerClosed) {
		t.Errorf("exhausted Scan() error = %v, want ErrScannerClosed", err)
	}
}

func TestReplayRejectsWrongLinkType(t *testing.T) {
	path := writeCapture(t, layers.LinkTypeEthernet, advFrame(testAddr, scalePayload(0x26)))
	if _, err := NewReplayScanner(path, ""); err == nil {
		t.Error("NewReplayScanner accepted an ethernet capture")
	}
}
