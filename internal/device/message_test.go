package device

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHeartbeat(t *testing.T) {
	msg := Classify(`{"type":"ping","sn":"D1"}`)
	assert.Equal(t, Heartbeat, msg.Kind)
	assert.Equal(t, "D1", msg.SN)
}

func TestClassifyAck(t *testing.T) {
	for _, typ := range []string{"getack", "setack", "customack"} {
		msg := Classify(`{"type":"` + typ + `","sn":"D1"}`)
		assert.Equal(t, Ack, msg.Kind, "type=%s", typ)
	}
}

func TestClassifyEvent(t *testing.T) {
	msg := Classify(`{"type":"evt","sn":"D1","payload":42}`)
	assert.Equal(t, Event, msg.Kind)
	assert.Equal(t, "D1", msg.SN)
}

func TestClassifyInvalid(t *testing.T) {
	cases := []string{
		`not json`,
		`{}`,
		`{"type":"ping"}`,
		`{"sn":"D1"}`,
		`"just a string"`,
		`[1,2,3]`,
		`{"type":42,"sn":"D1"}`,
	}
	for _, c := range cases {
		msg := Classify(c)
		assert.Equal(t, Invalid, msg.Kind, "input=%s", c)
	}
}

func TestExtractSN(t *testing.T) {
	sn, ok := ExtractSN([]byte(`{"sn":"D1","type":"get"}`))
	require.True(t, ok)
	assert.Equal(t, "D1", sn)

	_, ok = ExtractSN([]byte(`{"type":"get"}`))
	assert.False(t, ok)

	_, ok = ExtractSN([]byte(`not json`))
	assert.False(t, ok)
}

func TestWriteLineAppendsNewlineAndFlushes(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	require.NoError(t, WriteLine(w, Pong))
	assert.Equal(t, "{\"type\":\"pong\"}\n", buf.String())
}

func TestWriteLineRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	assert.Error(t, WriteLine(w, ""))
}
