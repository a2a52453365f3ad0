package crsf

import "testing"

func TestParserSingleFrame(t *testing.T) {
	p := NewParser(true)
	raw := BuildPing(AddrBroadcast, AddrRemote).Bytes()

	frames := p.Feed(raw)
	if len(frames) != 1 {
		t.Fatalf("Feed() returned %d frames, want 1", len(frames))
	}
	if frames[0].Type() != TypePing {
		t.Errorf("Type() = %v, want %v", frames[0].Type(), TypePing)
	}
}

func TestParserSplitAcrossFeeds(t *testing.T) {
	p := NewParser(true)
	raw := BuildDeviceInfo(AddrRemote, AddrFC).Bytes()

	var got []Frame
	for i := 0; i < len(raw); i++ {
		got = append(got, p.Feed(raw[i:i+1])...)
	}
	if len(got) != 1 {
		t.Fatalf("split feed produced %d frames, want 1", len(got))
	}
	if string(got[0].Bytes()) != string(raw) {
		t.Errorf("reassembled frame = % x, want % x", got[0].Bytes(), raw)
	}
}

func TestParserDiscardsNoiseBeforeFrame(t *testing.T) {
	p := NewParser(true)
	raw := BuildPing(AddrBroadcast, AddrRemote).Bytes()
	noisy := append([]byte{0x00, 0xFF, 0x11, 0x22}, raw...)

	frames := p.Feed(noisy)
	if len(frames) != 1 {
		t.Fatalf("Feed() returned %d frames, want 1", len(frames))
	}
	if string(frames[0].Bytes()) != string(raw) {
		t.Errorf("recovered frame = % x, want % x", frames[0].Bytes(), raw)
	}
}

func TestParserCRCBitflipIsDroppedAndNextFrameRecovers(t *testing.T) {
	p := NewParser(true)
	bad := append([]byte(nil), BuildPing(AddrBroadcast, AddrRemote).Bytes()...)
	bad[len(bad)-1] ^= 0x01 // flip a bit in the CRC byte
	good := BuildDeviceInfo(AddrRemote, AddrFC).Bytes()

	frames := p.Feed(append(bad, good...))
	if len(frames) != 1 {
		t.Fatalf("Feed() returned %d frames, want 1 (the corrupt frame should be dropped)", len(frames))
	}
	if frames[0].Type() != TypeDeviceInfo {
		t.Errorf("Type() = %v, want %v", frames[0].Type(), TypeDeviceInfo)
	}
}

func TestParserMultipleFramesInOneFeed(t *testing.T) {
	p := NewParser(true)
	a := BuildPing(AddrBroadcast, AddrRemote).Bytes()
	b := BuildDeviceInfo(AddrRemote, AddrFC).Bytes()

	frames := p.Feed(append(append([]byte{}, a...), b...))
	if len(frames) != 2 {
		t.Fatalf("Feed() returned %d frames, want 2", len(frames))
	}
	if frames[0].Type() != TypePing || frames[1].Type() != TypeDeviceInfo {
		t.Errorf("got types %v, %v; want %v, %v", frames[0].Type(), frames[1].Type(), TypePing, TypeDeviceInfo)
	}
}

func TestParserResetDropsPartialFrame(t *testing.T) {
	p := NewParser(true)
	raw := BuildPing(AddrBroadcast, AddrRemote).Bytes()

	p.Feed(raw[:3])
	p.Reset()
	frames := p.Feed(raw[3:])
	if len(frames) != 0 {
		t.Fatalf("Feed() after Reset() returned %d frames, want 0 (stale prefix discarded)", len(frames))
	}
}
