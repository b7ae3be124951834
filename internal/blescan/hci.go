package blescan

import (
	"fmt"
	"strings"
)

// H4 packet type octets.
const (
	h4Command = 0x01
	h4Event   = 0x04
)

// HCI opcodes (OGF<<10 | OCF).
const (
	opcodeReset            = 0x0C03
	opcodeLESetScanParams  = 0x200B
	opcodeLESetScanEnable  = 0x200C
)

// HCI event codes.
const (
	evtCommandComplete = 0x0E
	evtLEMeta          = 0x3E
	subevtAdvReport    = 0x02
)

// adTypeServiceData16 is the AD structure type for 16-bit-UUID service data.
const adTypeServiceData16 = 0x16

// command builds an H4-framed HCI command packet.
func command(opcode uint16, params ...byte) []byte {
	frame := make([]byte, 0, 4+len(params))
	frame = append(frame, h4Command, byte(opcode), byte(opcode>>8), byte(len(params)))
	return append(frame, params...)
}

// resetCommand returns HCI Reset.
func resetCommand() []byte {
	return command(opcodeReset)
}

// scanParamsCommand returns LE Set Scan Parameters: passive scanning,
// 10ms interval and window (0x0010 * 0.625ms), public own address, no
// filter policy.
func scanParamsCommand() []byte {
	return command(opcodeLESetScanParams,
		0x00,       // passive
		0x10, 0x00, // interval
		0x10, 0x00, // window
		0x00, // own address type: public
		0x00, // accept all advertisers
	)
}

// scanEnableCommand returns LE Set Scan Enable. Duplicate filtering stays
// off: the scale re-broadcasts the same reading many times and the
// interesting frame (stabilized + impedance) is usually not the first.
func scanEnableCommand(enable bool) []byte {
	var e byte
	if enable {
		e = 0x01
	}
	return command(opcodeLESetScanEnable, e, 0x00)
}

// event is one decoded HCI event frame.
type event struct {
	code   byte
	params []byte
}

// parseEvent decodes an H4 frame into an event. Non-event frames and
// truncated buffers return ok=false; a scanner skips them.
func parseEvent(frame []byte) (event, bool) {
	if len(frame) < 3 || frame[0] != h4Event {
		return event{}, false
	}
	paramLen := int(frame[2])
	if len(frame) < 3+paramLen {
		return event{}, false
	}
	return event{code: frame[1], params: frame[3 : 3+paramLen]}, true
}

// advReport is one advertising report from an LE Meta event.
type advReport struct {
	addr [6]byte // little-endian, as on the wire
	data []byte  // concatenated AD structures
}

// parseAdvReports extracts the advertising reports from an LE Advertising
// Report event's parameters. Structurally invalid input yields nil.
func parseAdvReports(params []byte) []advReport {
	if len(params) < 2 || params[0] != subevtAdvReport {
		return nil
	}
	numReports := int(params[1])
	p := params[2:]

	var reports []advReport
	for i := 0; i < numReports; i++ {
		// event_type(1) addr_type(1) addr(6) data_len(1) data rssi(1)
		if len(p) < 9 {
			return reports
		}
		var r advReport
		copy(r.addr[:], p[2:8])
		dataLen := int(p[8])
		if len(p) < 9+dataLen+1 {
			return reports
		}
		r.data = p[9 : 9+dataLen]
		reports = append(reports, r)
		p = p[9+dataLen+1:]
	}
	return reports
}

// serviceData returns the payload of the first 16-bit service data AD
// structure matching the given UUID, or nil.
func serviceData(adStructs []byte, uuid16 uint16) []byte {
	p := adStructs
	for len(p) >= 2 {
		length := int(p[0])
		if length == 0 || len(p) < 1+length {
			return nil
		}
		adType := p[1]
		payload := p[2 : 1+length]
		if adType == adTypeServiceData16 && len(payload) >= 2 {
			if uint16(payload[0])|uint16(payload[1])<<8 == uuid16 {
				return payload[2:]
			}
		}
		p = p[1+length:]
	}
	return nil
}

// formatAddr renders a wire-order (little-endian) address as colon-hex in
// the conventional big-endian display order.
func formatAddr(addr [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		addr[5], addr[4], addr[3], addr[2], addr[1], addr[0])
}

// matchesAddr reports whether the wire-order address matches the
// configured colon-hex MAC, case-insensitively. An empty MAC matches any
// device.
func matchesAddr(addr [6]byte, mac string) bool {
	if mac == "" {
		return true
	}
	return strings.EqualFold(formatAddr(addr), mac)
}
