package council

import (
	"context"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/Personaz1/openclaw-council/internal/observability"
	"github.com/Personaz1/openclaw-council/internal/rpc"
	"github.com/Personaz1/openclaw-council/internal/rpc/connectjson"
)

const ConnectRunProcedure = "/council.v1.CouncilService/Run"

// NewConnectHandler builds a Connect server-stream handler for Run.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRunHandler{runner: runner, metrics: metrics}
	return ConnectRunProcedure, connect.NewServerStreamHandler(ConnectRunProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRunHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRunHandler) handle(ctx context.Context, req *connect.Request[rpc.RunCouncilRequest], stream *connect.ServerStream[rpc.RunEvent]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	events, err := h.runner.Run(ctx, *req.Msg)
	if err != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	for ev := range events {
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			// drain so the pipeline goroutine can exit
			for range events {
			}
			return err
		}
	}
	return nil
}
