package pca9543

import "testing"

func TestChannelMask(t *testing.T) {
	if ChannelMask(0) != SelectCh0 {
		t.Fatal("channel 0 mask")
	}
	if ChannelMask(1) != SelectCh1 {
		t.Fatal("channel 1 mask")
	}
}

func TestValidMask(t *testing.T) {
	for _, m := range []byte{SelectNone, SelectCh0, SelectCh1} {
		if !ValidMask(m) {
			t.Errorf("mask %#x should be valid", m)
		}
	}
	if ValidMask(0x03) {
		t.Error("both channels at once should be invalid")
	}
}
