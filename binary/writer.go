package binary

import (
	"fmt"
	"math"
	"strings"
)

// Writer serializes Node trees into the compact binary framing: a
// list-opener byte scheme with dictionary-tokenized strings, packed
// numerics, and length-prefixed literals.
type Writer struct {
	dict Dictionary
	data []byte
}

// NewWriter creates a Writer using the default dictionary.
func NewWriter() *Writer {
	return &Writer{dict: DefaultDictionary}
}

// Bytes returns the accumulated output and resets the writer for reuse.
func (w *Writer) Bytes() []byte {
	out := w.data
	w.data = nil
	return out
}

func (w *Writer) pushByte(b byte) { w.data = append(w.data, b) }
func (w *Writer) pushBytes(b []byte) { w.data = append(w.data, b...) }

func (w *Writer) pushIntN(value, n int) {
	for i := 0; i < n; i++ {
		shift := n - i - 1
		w.pushByte(byte((value >> uint(shift*8)) & 0xFF))
	}
}

func (w *Writer) pushInt8(v int)  { w.pushIntN(v, 1) }
func (w *Writer) pushInt16(v int) { w.pushIntN(v, 2) }
func (w *Writer) pushInt20(v int) {
	w.pushBytes([]byte{byte((v >> 16) & 0x0F), byte((v >> 8) & 0xFF), byte(v & 0xFF)})
}
func (w *Writer) pushInt32(v int) { w.pushIntN(v, 4) }

// WriteNode encodes a full node, including its list-opener header.
func (w *Writer) WriteNode(n Node) error {
	numAttrs := 0
	if n.Attrs != nil {
		numAttrs = n.Attrs.Len()
	}
	hasContent := 0
	if len(n.Children) > 0 || len(n.Payload) > 0 {
		hasContent = 1
	}
	w.writeListStart(2*numAttrs + 1 + hasContent)
	if err := w.writeString(n.Tag); err != nil {
		return fmt.Errorf("tag %q: %w", n.Tag, err)
	}
	if err := w.writeAttrs(n.Attrs); err != nil {
		return err
	}
	return w.writeContent(n)
}

func (w *Writer) writeAttrs(attrs Attrs) error {
	if attrs == nil {
		return nil
	}
	for key, val := range attrs.AllFromFront() {
		if err := w.writeString(key); err != nil {
			return err
		}
		if err := w.writeString(val); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeContent(n Node) error {
	switch {
	case len(n.Children) > 0:
		w.writeListStart(len(n.Children))
		for _, c := range n.Children {
			if err := w.WriteNode(c); err != nil {
				return err
			}
		}
		return nil
	case len(n.Payload) > 0:
		return w.writeBinary(n.Payload)
	default:
		return nil
	}
}

func (w *Writer) writeListStart(size int) {
	switch {
	case size == 0:
		w.pushByte(listEmpty)
	case size < 256:
		w.pushByte(list8)
		w.pushInt8(size)
	default:
		w.pushByte(list16)
		w.pushInt16(size)
	}
}

func (w *Writer) writeBinary(data []byte) error {
	n := len(data)
	switch {
	case n >= 1<<32:
		return ErrLengthTooLarge
	case n >= 1<<20:
		w.pushByte(binary32)
		w.pushInt32(n)
	case n >= 256:
		w.pushByte(binary20)
		w.pushInt20(n)
	default:
		w.pushByte(binary8)
		w.pushInt8(n)
	}
	w.pushBytes(data)
	return nil
}

// writeString encodes a string as a dictionary token, a JID pair, or a raw
// length-prefixed literal, in that preference order.
func (w *Writer) writeString(s string) error {
	if idx := w.dict.indexOfSingleToken(s); idx != -1 {
		return w.writeToken(idx)
	}
	if table, index, ok := w.dict.indexOfDoubleToken(s); ok {
		w.pushByte(byte(dictionary0 + table))
		return w.writeToken(index)
	}
	if at := strings.IndexByte(s, '@'); at > 0 {
		return w.writeJID(s[:at], s[at+1:])
	}
	return w.writeBinary([]byte(s))
}

func (w *Writer) writeToken(index int) error {
	if index >= singleByteMax {
		return fmt.Errorf("binary: dictionary token %d out of single-byte range", index)
	}
	w.pushByte(byte(index))
	return nil
}

func (w *Writer) writeJID(user, server string) error {
	w.pushByte(jidPair)
	if user != "" {
		if err := w.writePackedNumeric(user); err != nil {
			// Fall back to a literal when the user part has non-numeric
			// characters the NIBBLE_8/HEX_8 packing can't represent.
			if err := w.writeBinary([]byte(user)); err != nil {
				return err
			}
		}
	} else {
		w.pushByte(listEmpty)
	}
	return w.writeString(server)
}

// writePackedNumeric tries NIBBLE_8 then HEX_8 packing for number-like
// strings (MSISDNs, pre-key ids rendered as text, etc).
func (w *Writer) writePackedNumeric(value string) error {
	if err := w.writePacked(value, nibble8); err == nil {
		return nil
	}
	return w.writePacked(value, hex8)
}

func (w *Writer) writePacked(value string, kind int) error {
	n := len(value)
	if n > packedMax {
		return fmt.Errorf("binary: value too long to pack (%d bytes)", n)
	}
	packed := make([]byte, 0, n/2+1)
	odd := n%2 != 0
	full := n / 2
	for i := 0; i < full; i++ {
		b, err := packPair(value[2*i:2*i+1], value[2*i+1:2*i+2], kind)
		if err != nil {
			return err
		}
		packed = append(packed, b)
	}
	if odd {
		b, err := packPair(value[n-1:], "\x00", kind)
		if err != nil {
			return err
		}
		packed = append(packed, b)
	}
	w.pushByte(byte(kind))
	lengthByte := int(math.Ceil(float64(n) / 2.0))
	if odd {
		lengthByte |= 0x80
	}
	w.pushByte(byte(lengthByte))
	w.pushBytes(packed)
	return nil
}

func packPair(a, b string, kind int) (byte, error) {
	var hi, lo int
	var err error
	switch kind {
	case nibble8:
		hi, err = packNibble(a)
		if err == nil {
			lo, err = packNibble(b)
		}
	case hex8:
		hi, err = packHex(a)
		if err == nil {
			lo, err = packHex(b)
		}
	default:
		return 0, fmt.Errorf("binary: unknown pack kind %d", kind)
	}
	if err != nil {
		return 0, err
	}
	return byte(hi<<4 | lo), nil
}

func packNibble(v string) (int, error) {
	switch {
	case v >= "0" && v <= "9":
		return int(v[0] - '0'), nil
	case v == "-":
		return 10, nil
	case v == ".":
		return 11, nil
	case v == "\x00":
		return 15, nil
	default:
		return 0, fmt.Errorf("binary: %q is not nibble-packable", v)
	}
}

func packHex(v string) (int, error) {
	switch {
	case v >= "0" && v <= "9":
		return int(v[0] - '0'), nil
	case v >= "A" && v <= "F":
		return int(v[0]-'A') + 10, nil
	case v >= "a" && v <= "f":
		return int(v[0]-'a') + 10, nil
	case v == "\x00":
		return 15, nil
	default:
		return 0, fmt.Errorf("binary: %q is not hex-packable", v)
	}
}
