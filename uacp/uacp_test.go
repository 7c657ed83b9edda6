package uacp

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverDone := make(chan *Conn, 1)
	serverErr := make(chan error, 1)
	go func() {
		c, err := Accept(server, WithBufferSizes(32*1024, 16*1024), WithMaxMessageSize(1<<20))
		if err != nil {
			serverErr <- err
			return
		}
		serverDone <- c
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cc, err := handshakeClient(client, "opc.tcp://127.0.0.1:4840/test", &dialConfig{
		receiveBufferSize: 64 * 1024,
		sendBufferSize:    64 * 1024,
		maxMessageSize:    1 << 20,
		dialTimeout:       2 * time.Second,
	})
	_ = ctx
	if err != nil {
		t.Fatalf("client handshake failed: %s", err)
	}

	var sc *Conn
	select {
	case sc = <-serverDone:
	case err := <-serverErr:
		t.Fatalf("server handshake failed: %s", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server handshake")
	}

	switch {
	case cc.EffectiveSendChunkSize() != 32*1024:
		t.Errorf("client send chunk size doesn't match. want: %d, got: %d", 32*1024, cc.EffectiveSendChunkSize())
	case cc.EffectiveReceiveChunkSize() != 16*1024:
		t.Errorf("client receive chunk size doesn't match. want: %d, got: %d", 16*1024, cc.EffectiveReceiveChunkSize())
	case sc.EffectiveSendChunkSize() != 16*1024:
		t.Errorf("server send chunk size doesn't match. want: %d, got: %d", 16*1024, sc.EffectiveSendChunkSize())
	}
}

func TestHandshakeRejectsNonHello(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go writeFramed(client, MessageTypeError, []byte{0, 0, 0, 0})

	_, err := Accept(server)
	if err == nil {
		t.Fatal("expected Accept to reject a non-Hello opening message")
	}
}

func TestWriteReadChunkRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cc := &Conn{nc: client, Local: Acknowledge{ReceiveBufferSize: 64 * 1024, SendBufferSize: 64 * 1024}, Remote: Acknowledge{ReceiveBufferSize: 64 * 1024, SendBufferSize: 64 * 1024}}
	sc := &Conn{nc: server, Local: Acknowledge{ReceiveBufferSize: 64 * 1024, SendBufferSize: 64 * 1024}, Remote: Acknowledge{ReceiveBufferSize: 64 * 1024, SendBufferSize: 64 * 1024}}

	body := []byte("hello secure channel")
	go func() {
		if err := cc.WriteChunk("MSG", 'F', body); err != nil {
			t.Error(err)
		}
	}()

	msgType, chunkType, got, err := sc.ReadChunk()
	if err != nil {
		t.Fatalf("ReadChunk failed: %s", err)
	}
	switch {
	case msgType != "MSG":
		t.Errorf("message type doesn't match. want: MSG, got: %s", msgType)
	case chunkType != 'F':
		t.Errorf("chunk type doesn't match. want: F, got: %c", chunkType)
	case string(got) != string(body):
		t.Errorf("body doesn't match. want: %q, got: %q", body, got)
	}
}
