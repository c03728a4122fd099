package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/binderdump/pkg/codec"
)

type Inner struct {
	Num int16
}

type Message struct {
	Array [3]uint8
	Inner *Inner
}

// ExampleUnmarshalWithOffsets decodes a record and walks its layout.
func ExampleUnmarshalWithOffsets() {
	data := []byte{0x61, 0x62, 0x63, 0x01, 0x03, 0x00}

	var msg Message
	layout, err := codec.UnmarshalWithOffsets(data, &msg)
	if err != nil {
		log.Fatal(err)
	}
	if layout.Err != nil {
		log.Fatal(layout.Err)
	}

	fmt.Printf("array=%s inner.num=%d\n", msg.Array[:], msg.Inner.Num)
	for _, f := range layout.Root.Fields {
		fmt.Printf("%s @%d +%d\n", f.Name, f.Offset, f.Size)
	}

	// Output:
	// array=abc inner.num=3
	// array @0 +3
	// inner_is_present @3 +1
	// inner @4 +2
}

// ExampleMarshal shows the little-endian, u16-prefixed encoding.
func ExampleMarshal() {
	type Record struct {
		ID   uint32
		Name string
		Tag  *uint8
	}

	data, err := codec.Marshal(Record{ID: 7, Name: "hi"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("% x\n", data)

	// Output:
	// 07 00 00 00 02 00 68 69 00
}

// ExampleDescribe lists the header fields a dissector would register.
func ExampleDescribe() {
	info, err := codec.Describe(Message{}, "Message", "msg")
	if err != nil {
		log.Fatal(err)
	}
	for _, fi := range info {
		fmt.Println(fi.Abbrev, fi.Type)
	}

	// Output:
	// msg protocol
	// msg.array bytes
	// msg.inner_is_present bool
	// msg.inner none
	// msg.inner.num i16
}
