package pktgen

import (
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// TestCaseWriter durably records a concrete test case and its packet
// sequence. The exploration core does not consume the result beyond logging
// a failure.
type TestCaseWriter interface {
	Write(tc *TestCase, packets []Packet) error
}

// JSONTestCaseWriter writes one JSON document per test case. Packet bytes
// are rendered as hex along with a decoded layer summary.
type JSONTestCaseWriter struct {
	enc *json.Encoder
}

var _ TestCaseWriter = (*JSONTestCaseWriter)(nil)

// NewJSONTestCaseWriter returns a new instance of JSONTestCaseWriter
// writing to w.
func NewJSONTestCaseWriter(w io.Writer) *JSONTestCaseWriter {
	return &JSONTestCaseWriter{enc: json.NewEncoder(w)}
}

// jsonPacket is the serialized form of one packet in a test case document.
type jsonPacket struct {
	Port   int      `json:"port"`
	Len    int      `json:"len"`
	Hex    string   `json:"packet_hexstr"`
	Layers []string `json:"layers,omitempty"`
}

// jsonTestCase is the envelope for one serialized test case.
type jsonTestCase struct {
	*TestCase
	Packets []jsonPacket `json:"packets"`
}

// Write encodes the test case and its packet sequence as a JSON document.
func (w *JSONTestCaseWriter) Write(tc *TestCase, packets []Packet) error {
	doc := jsonTestCase{TestCase: tc, Packets: make([]jsonPacket, 0, len(packets))}
	for _, p := range packets {
		doc.Packets = append(doc.Packets, jsonPacket{
			Port:   p.Port,
			Len:    len(p.Data),
			Hex:    hex.EncodeToString(p.Data),
			Layers: decodeLayers(p.Data),
		})
	}
	return w.enc.Encode(&doc)
}

// decodeLayers returns the layer names gopacket recognizes in the packet
// bytes, assuming an Ethernet link layer. Undecodable bytes yield a payload
// or decode-failure layer rather than an error; the summary is advisory.
func decodeLayers(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Lazy)
	var names []string
	for _, layer := range pkt.Layers() {
		names = append(names, layer.LayerType().String())
	}
	return names
}
