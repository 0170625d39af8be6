package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec(SafetyCodeLowerMd4, 0x67452301, 0xefcdab89, 0x98badcfe, 0x10325476)
}

func TestCreateDataRoundTrip(t *testing.T) {
	c := testCodec()
	p, err := c.CreateData(HeaderCreate{ReceiverID: 2, SenderID: 1, SequenceNumber: 5}, []byte("hello"))
	require.NoError(t, err)

	c.UpdateHeader(p, HeaderUpdate{ConfirmedSequenceNumber: 4, TimeStamp: 1000})

	assert.Equal(t, TypeData, GetType(p))
	assert.Equal(t, uint32(5), GetSeq(p))
	assert.Equal(t, []byte("hello"), GetPayload(p))
	assert.Equal(t, CheckOK, c.Check(p))
}

func TestCheckDetectsTamperedSafetyCode(t *testing.T) {
	c := testCodec()
	p, err := c.CreateData(HeaderCreate{ReceiverID: 2, SenderID: 1, SequenceNumber: 5}, []byte("hello"))
	require.NoError(t, err)
	c.UpdateHeader(p, HeaderUpdate{})

	p.Bytes[len(p.Bytes)-1] ^= 0xFF
	assert.Equal(t, CheckInvalidMd4, c.Check(p))
}

func TestCheckDetectsInvalidType(t *testing.T) {
	c := testCodec()
	p, err := c.CreateData(HeaderCreate{ReceiverID: 2, SenderID: 1, SequenceNumber: 5}, []byte("x"))
	require.NoError(t, err)
	c.UpdateHeader(p, HeaderUpdate{})

	p.Bytes[2], p.Bytes[3] = 0xFF, 0xFF // corrupt type, leaves md4 invalid too but size ok
	result := c.Check(p)
	assert.True(t, result == CheckInvalidMd4 || result == CheckInvalidType)
}

func TestCheckDetectsSizeMismatch(t *testing.T) {
	c := NewCodec(SafetyCodeNone, 0, 0, 0, 0)
	p := c.CreateHb(HeaderCreate{ReceiverID: 2, SenderID: 1, SequenceNumber: 1})
	c.UpdateHeader(p, HeaderUpdate{})

	truncated := &PDU{Bytes: p.Bytes[:len(p.Bytes)-1]}
	assert.Equal(t, CheckInvalidSize, c.Check(truncated))
}

func TestCreateDataRejectsOversizedPayload(t *testing.T) {
	c := testCodec()
	_, err := c.CreateData(HeaderCreate{}, make([]byte, 1056))
	assert.Error(t, err)
}

func TestCreateDataRejectsEmptyPayload(t *testing.T) {
	c := testCodec()
	_, err := c.CreateData(HeaderCreate{}, nil)
	assert.Error(t, err)
}

func TestVersionAccepted(t *testing.T) {
	assert.True(t, VersionAccepted(ProtocolVersion))
	assert.True(t, VersionAccepted([4]byte{'0', '4', '0', '0'}))
	assert.False(t, VersionAccepted([4]byte{'0', '2', '0', '0'}))
}

func TestConnReqConnRespPayload(t *testing.T) {
	c := testCodec()
	p := c.CreateConnReq(HeaderCreate{ReceiverID: 2, SenderID: 1}, 7)
	c.UpdateHeader(p, HeaderUpdate{})
	assert.Equal(t, CheckOK, c.Check(p))

	version, nSendMax := GetConnData(p)
	assert.Equal(t, ProtocolVersion, version)
	assert.Equal(t, uint16(7), nSendMax)
}

func TestDiscReqData(t *testing.T) {
	c := testCodec()
	p := c.CreateDiscReq(HeaderCreate{ReceiverID: 2, SenderID: 1}, 42, 7)
	c.UpdateHeader(p, HeaderUpdate{})

	detailed, reason := GetDiscData(p)
	assert.Equal(t, uint16(42), detailed)
	assert.Equal(t, uint16(7), reason)
}

func TestSafetyCodeNoneProducesNoTrailer(t *testing.T) {
	c := NewCodec(SafetyCodeNone, 0, 0, 0, 0)
	p := c.CreateHb(HeaderCreate{ReceiverID: 2, SenderID: 1})
	assert.Equal(t, 28, p.Size())
}

func TestIsTimeoutRelevant(t *testing.T) {
	assert.True(t, TypeHb.IsTimeoutRelevant())
	assert.True(t, TypeData.IsTimeoutRelevant())
	assert.True(t, TypeRetrData.IsTimeoutRelevant())
	assert.False(t, TypeConnReq.IsTimeoutRelevant())
}

func TestPDUClone(t *testing.T) {
	c := testCodec()
	p, _ := c.CreateData(HeaderCreate{}, []byte("x"))
	cp := p.Clone()
	cp.Bytes[0] = 0xFF
	assert.NotEqual(t, p.Bytes[0], cp.Bytes[0])
}
