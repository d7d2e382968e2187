package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/Personaz1/openclaw-council/internal/council"
	"github.com/Personaz1/openclaw-council/internal/daemon"
	"github.com/Personaz1/openclaw-council/internal/rpc"
	councilrpc "github.com/Personaz1/openclaw-council/internal/rpc/council"
	"github.com/Personaz1/openclaw-council/internal/rpc/connectjson"
)

func runRemote(ctx context.Context, cmd *cobra.Command, flags *runFlags) (*council.Run, error) {
	req := rpc.RunCouncilRequest{Query: flags.query, CorrelationID: "cli-" + uuid.NewString()}
	baseURL := daemonURL(flags.remote)

	switch strings.ToLower(strings.TrimSpace(flags.transport)) {
	case "ndjson":
		return runNDJSON(ctx, cmd, baseURL+daemon.RunPath, req)
	case "", "connect":
		return runConnect(ctx, cmd, baseURL+councilrpc.ConnectRunProcedure, req)
	default:
		return nil, fmt.Errorf("unknown transport %q", flags.transport)
	}
}

func daemonURL(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RunCouncilRequest) (*council.Run, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	var run *council.Run
	for scanner.Scan() {
		var evt rpc.RunEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if err := handleEvent(cmd, evt, &run); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return finished(run)
}

func runConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RunCouncilRequest) (*council.Run, error) {
	client := connect.NewClient[rpc.RunCouncilRequest, rpc.RunEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&reqBody))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var run *council.Run
	for stream.Receive() {
		if err := handleEvent(cmd, *stream.Msg(), &run); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return finished(run)
}

func handleEvent(cmd *cobra.Command, evt rpc.RunEvent, run **council.Run) error {
	switch evt.Type {
	case rpc.EventStage:
		printStage(cmd.ErrOrStderr(), evt.Stage, evt.Results)
	case rpc.EventDone:
		*run = evt.Run
	case rpc.EventError:
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}

func finished(run *council.Run) (*council.Run, error) {
	if run == nil {
		return nil, fmt.Errorf("daemon closed the stream before the run finished")
	}
	return run, nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
