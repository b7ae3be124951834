package blescan

import (
	"bytes"
	"testing"
)

// scalePayload builds a minimal 13-byte service-data payload with the
// given control byte.
func scalePayload(ctrl byte) []byte {
	p := make([]byte, 13)
	p[1] = ctrl
	p[9], p[10] = 0xF4, 0x01 // impedance 500
	p[11], p[12] = 0x80, 0x3E // raw weight 16000 = 80kg
	return p
}

// advFrame builds an H4 LE Meta advertising report frame carrying the
// payload as 0x181B service data from the given address.
func advFrame(addr [6]byte, payload []byte) []byte {
	sd := append([]byte{byte(len(payload) + 3), adTypeServiceData16, 0x1B, 0x18}, payload...)

	report := []byte{0x03, 0x00}
	report = append(report, addr[:]...)
	report = append(report, byte(len(sd)))
	report = append(report, sd...)
	report = append(report, 0xC8) // rssi

	params := append([]byte{subevtAdvReport, 0x01}, report...)
	frame := []byte{h4Event, evtLEMeta, byte(len(params))}
	return append(frame, params...)
}

var testAddr = [6]byte{0xB6, 0xCE, 0xA7, 0xB2, 0x22, 0x88} // 88:22:b2:a7:ce:b6 on the wire

func TestCommandFraming(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"reset", resetCommand(), []byte{0x01, 0x03, 0x0C, 0x00}},
		{
			"scan params",
			scanParamsCommand(),
			[]byte{0x01, 0x0B, 0x20, 0x07, 0x00, 0x10, 0x00, 0x10, 0x00, 0x00, 0x00},
		},
		{"scan enable", scanEnableCommand(true), []byte{0x01, 0x0C, 0x20, 0x02, 0x01, 0x00}},
		{"scan disable", scanEnableCommand(false), []byte{0x01, 0x0C, 0x20, 0x02, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !bytes.Equal(tt.got, tt.want) {
				t.Errorf("got % X, want % X", tt.got, tt.want)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	evt, ok := parseEvent([]byte{h4Event, evtCommandComplete, 0x03, 0x01, 0x03, 0x0C})
	if !ok {
		t.Fatal("parseEvent rejected a valid frame")
	}
	if evt.code != evtCommandComplete || len(evt.params) != 3 {
		t.Errorf("event = %+v", evt)
	}

	if _, ok := parseEvent([]byte{h4Command, 0x03, 0x0C}); ok {
		t.Error("parseEvent accepted a command frame")
	}
	if _, ok := parseEvent([]byte{h4Event, evtLEMeta, 0x10, 0x02}); ok {
		t.Error("parseEvent accepted a truncated frame")
	}
}

func TestParseAdvReports(t *testing.T) {
	payload := scalePayload(0x26)
	frame := advFrame(testAddr, payload)

	evt, ok := parseEvent(frame)
	if !ok {
		t.Fatal("parseEvent failed")
	}
	reports := parseAdvReports(evt.params)
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].addr != testAddr {
		t.Errorf("addr = % X", reports[0].addr)
	}

	got := serviceData(reports[0].data, 0x181B)
	if !bytes.Equal(got, payload) {
		t.Errorf("service data = % X, want % X", got, payload)
	}
}

func TestParseAdvReportsGarbage(t *testing.T) {
	if got := parseAdvReports([]byte{0x01, 0x05}); got != nil {
		t.Errorf("wrong subevent: got %v", got)
	}
	if got := parseAdvReports([]byte{subevtAdvReport, 0x02, 0x03}); got != nil {
		t.Errorf("truncated report: got %v", got)
	}
}

func TestServiceDataSkipsOtherStructures(t *testing.T) {
	payload := scalePayload(0x26)
	// Flags structure, then a 0x180F service data, then the scale's.
	adStructs := []byte{0x02, 0x01, 0x06}
	adStructs = append(adStructs, 0x03, adTypeServiceData16, 0x0F, 0x18)
	adStructs = append(adStructs, byte(len(payload)+3), adTypeServiceData16, 0x1B, 0x18)
	adStructs = append(adStructs, payload...)

	got := serviceData(adStructs, 0x181B)
	if !bytes.Equal(got, payload) {
		t.Errorf("service data = % X, want % X", got, payload)
	}

	if serviceData([]byte{0x00, 0xFF}, 0x181B) != nil {
		t.Error("zero-length structure should terminate the walk")
	}
}

func TestMatchesAddr(t *testing.T) {
	if !matchesAddr(testAddr, "88:22:B2:A7:CE:B6") {
		t.Error("uppercase MAC should match")
	}
	if !matchesAddr(testAddr, "88:22:b2:a7:ce:b6") {
		t.Error("lowercase MAC should match")
	}
	if !matchesAddr(testAddr, "") {
		t.Error("empty MAC should match any device")
	}
	if matchesAddr(testAddr, "00:11:22:33:44:55") {
		t.Error("different MAC should not match")
	}
}
