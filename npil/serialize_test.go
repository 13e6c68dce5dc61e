package npil

import (
	"bytes"
	"testing"
)

func TestSerializeData(t *testing.T) {
	data := bytes.Repeat([]byte("dendrite axon neuropil "), 200)
	for _, compress := range []Compression{Uncompressed, Snappy, LZ4, Gzip} {
		for _, checksum := range []Checksum{NoChecksum, CRC32} {
			s, err := SerializeData(data, compress, checksum)
			if err != nil {
				t.Fatalf("%s / %s: unable to serialize: %v\n", compress, checksum, err)
			}
			got, gotCompress, err := DeserializeData(s, true)
			if err != nil {
				t.Fatalf("%s / %s: unable to deserialize: %v\n", compress, checksum, err)
			}
			if gotCompress != compress {
				t.Errorf("expected compression %s, got %s\n", compress, gotCompress)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("%s / %s: data mismatch after round trip\n", compress, checksum)
			}
		}
	}
}

func TestSerializeDataBadChecksum(t *testing.T) {
	s, err := SerializeData([]byte("some label data"), Uncompressed, CRC32)
	if err != nil {
		t.Fatalf("unable to serialize: %v\n", err)
	}
	s[len(s)-1] ^= 0xff
	if _, _, err := DeserializeData(s, true); err == nil {
		t.Errorf("expected checksum error on corrupted data\n")
	}
}

func TestSerializeVolume(t *testing.T) {
	vol, _ := NewVolume(T_uint32, 4, 5, 6)
	for i := range vol.Data() {
		vol.Data()[i] = uint64(i % 7)
	}
	s, err := SerializeVolume(vol, Snappy, CRC32)
	if err != nil {
		t.Fatalf("unable to serialize volume: %v\n", err)
	}
	got, err := DeserializeVolume(s)
	if err != nil {
		t.Fatalf("unable to deserialize volume: %v\n", err)
	}
	if !got.SameShape(vol) || got.DataType() != T_uint32 {
		t.Fatalf("expected %s, got %s\n", vol, got)
	}
	for i := range vol.Data() {
		if got.Data()[i] != vol.Data()[i] {
			t.Fatalf("element %d mismatch: %d != %d\n", i, got.Data()[i], vol.Data()[i])
		}
	}
}

func TestParseCompression(t *testing.T) {
	if c, err := ParseCompression("lz4"); err != nil || c != LZ4 {
		t.Errorf("bad parse of lz4: %s, %v\n", c, err)
	}
	if c, err := ParseCompression(""); err != nil || c != Uncompressed {
		t.Errorf("bad parse of empty compression: %s, %v\n", c, err)
	}
	if _, err := ParseCompression("zip"); err == nil {
		t.Errorf("expected error on unknown compression\n")
	}
}
