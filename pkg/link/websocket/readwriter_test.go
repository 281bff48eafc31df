package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mbox.go/pkg/mailbox"
)

func TestWebsocketCall(t *testing.T) {
	mbox := mailbox.New()
	peer := mailbox.NewPeer(mbox.Port(), mailbox.HandleCommandFunc(func(ctx context.Context, cmd *mailbox.Command) mailbox.Response {
		copy(cmd.Arg(0).Buf, "pong")
		return mailbox.NewResponse(cmd.Opcode, mailbox.StatusSuccess)
	}))
	ctx, cancel := context.WithCancel(context.TODO())
	server := httptest.NewServer(Handler(ctx, mailbox.NewSerial(mbox)))
	defer server.Close()
	defer cancel()
	go peer.Run(ctx)

	client, err := Dial("ws" + strings.TrimPrefix(server.URL, "http"))
	require.NoError(t, err)
	go client.Run(ctx)

	out := make([]byte, 4)
	var cmd mailbox.Command
	require.NoError(t, cmd.Set(1, mailbox.OutputArg(out)))
	rsp, err := client.Call(ctx, &cmd)
	require.NoError(t, err)
	require.Equal(t, mailbox.StatusSuccess, rsp.Status())
	require.Equal(t, "pong", string(out))
}
