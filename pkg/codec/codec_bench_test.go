//go:build bench
// +build bench

package codec

import (
	"testing"
)

func benchmarkValue() roundTrip {
	return roundTrip{
		Int:    0xff,
		Seq:    make([]uint8, 512),
		Str:    "system_server",
		En:     wideOne,
		Inner:  roundTripInner{En: wideZero},
		Option: ptr(uint16(9000)),
		Array:  [2]uint8{1, 2},
	}
}

func BenchmarkMarshal(b *testing.B) {
	v := benchmarkValue()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Marshal(&v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	data, err := Marshal(benchmarkValue())
	if err != nil {
		b.Fatal(err)
	}

	benchmarks := []struct {
		name    string
		offsets bool
	}{
		{name: "plain", offsets: false},
		{name: "with_offsets", offsets: true},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var v roundTrip
				if bm.offsets {
					if _, err := UnmarshalWithOffsets(data, &v); err != nil {
						b.Fatal(err)
					}
					continue
				}
				if err := Unmarshal(data, &v); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
