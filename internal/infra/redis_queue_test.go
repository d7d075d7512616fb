package infra

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushVenueCommand(t *testing.T) {
	db, mock := redismock.NewClientMock()

	cmd := VenueCommand{Type: "SETTLE", RequestID: "r1", Payload: map[string]string{"market_id": "SOL-USDC"}}
	data, err := json.Marshal(cmd)
	require.NoError(t, err)
	mock.ExpectRPush("venue_cmd_queue", data).SetVal(1)

	require.NoError(t, PushVenueCommand(context.Background(), db, "venue_cmd_queue", cmd))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAwaitVenueReply(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()

	mock.ExpectBRPop(time.Second, "venue:reply:r1").SetVal([]string{"venue:reply:r1", `{"request_id":"r1","ok":false,"error":"insufficient funds"}`})
	mock.ExpectBRPop(time.Second, "venue:reply:r2").RedisNil()

	reply, err := AwaitVenueReply(ctx, db, "r1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "r1", reply.RequestID)
	assert.False(t, reply.OK)
	assert.Equal(t, "insufficient funds", reply.Error)

	_, err = AwaitVenueReply(ctx, db, "r2", time.Second)
	assert.ErrorIs(t, err, ErrReplyTimeout)

	require.NoError(t, mock.ExpectationsWereMet())
}
