package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	packets := []DataPacket{
		{
			Entitlements: NewEntitlementSet(1, 2, 3),
			Headers:      map[string]string{"content-type": "text/plain"},
			Payload:      []byte("hello"),
		},
		{
			Entitlements: NewEntitlementSet(),
			Headers:      map[string]string{},
			Payload:      []byte{},
		},
	}

	cases := []Message{
		AuthenticationRequest{Method: "basic", Credentials: []byte("dXNlcjpwYXNz")},
		AuthenticationResponse{ClientID: "c1"},
		SubscriptionRequest{Topic: "foo.*.bar", IsAdd: true},
		SubscriptionRequest{Topic: "foo.*.bar", IsAdd: false},
		MulticastData{Topic: "quote.MSFT", DataPackets: packets},
		UnicastData{ClientID: "c2", Topic: "quote.MSFT", DataPackets: packets},
		ForwardedMulticastData{Host: "h1", User: "joe", Topic: "quote.MSFT", DataPackets: packets},
		ForwardedUnicastData{Host: "h1", User: "joe", ClientID: "c2", Topic: "quote.MSFT", DataPackets: packets},
		ForwardedSubscriptionRequest{Host: "h1", User: "joe", ClientID: "c2", Topic: "quote.MSFT", Count: 3},
		NotificationRequest{Topic: "quote.MSFT"},
	}

	for _, want := range cases {
		body, err := Encode(want)
		require.NoError(t, err)

		got, err := Decode(body)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	msg := MulticastData{
		Topic: "quote.MSFT",
		DataPackets: []DataPacket{
			{Entitlements: NewEntitlementSet(7), Headers: map[string]string{"k": "v"}, Payload: []byte("x")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, msg))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter()
	w.WriteU32(MaxFrameSize + 1)
	buf.Write(w.Bytes())

	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestDecodeInvalidUTF8String(t *testing.T) {
	w := NewWriter()
	w.WriteU8(TagNotificationRequest)
	w.WriteBytes([]byte{0xff, 0xfe, 0xfd})

	_, err := Decode(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeUnknownTag(t *testing.T) {
	w := NewWriter()
	w.WriteU8(255)

	_, err := Decode(w.Bytes())
	assert.Error(t, err)
}

func TestDecodeShortRead(t *testing.T) {
	_, err := Decode([]byte{TagAuthenticationResponse})
	assert.Error(t, err)
}

func TestEntitlementSetOperations(t *testing.T) {
	a := NewEntitlementSet(1, 2, 3)
	b := NewEntitlementSet(2, 3, 4)

	assert.True(t, a.Contains(1))
	assert.False(t, a.Contains(4))
	assert.True(t, NewEntitlementSet().Subset(a))
	assert.False(t, a.Subset(b))
	assert.ElementsMatch(t, []int32{2, 3}, a.Intersect(b).Slice())
	assert.ElementsMatch(t, []int32{1, 2, 3, 4}, a.Union(b).Slice())
}
