package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/meetpoint-server/internal/proto"
	transporthttp "github.com/vovakirdan/meetpoint-server/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://localhost:8080", "server base URL")
	owner := flag.String("owner", "smoke-owner", "user id creating the room")
	guest := flag.String("guest", "smoke-guest", "user id joining the room")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var created transporthttp.CreateRoomResponse
	if err := postJSON(ctx, *base+"/rooms", map[string]string{"ownerUserId": *owner, "ownerName": *owner}, &created); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	fmt.Printf("Created room %s (%s)\n", created.RoomID, created.ShareURL)

	var joined transporthttp.JoinRoomResponse
	if err := postJSON(ctx, *base+"/rooms/"+created.RoomID+"/join", map[string]string{"userId": *guest, "name": *guest}, &joined); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
	ownerConn, err := openSession(ctx, wsURL, created.SessionToken)
	if err != nil {
		return fmt.Errorf("owner session: %w", err)
	}
	defer ownerConn.Close(websocket.StatusNormalClosure, "bye")

	guestConn, err := openSession(ctx, wsURL, joined.SessionToken)
	if err != nil {
		return fmt.Errorf("guest session: %w", err)
	}
	defer guestConn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.LocationData{Latitude: 52.52, Longitude: 13.405, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	if err := wsjson.Write(ctx, guestConn, proto.Inbound{Type: proto.InboundTypeLocation, Data: payload}); err != nil {
		return fmt.Errorf("send location: %w", err)
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, ownerConn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received outbound: type=%s event=%s\n", outbound.Type, outbound.Event)
		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}
		if outbound.Event == proto.EventLocationUpdated {
			var evt proto.EventLocationUpdatedData
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				return fmt.Errorf("unmarshal location: %w", err)
			}
			fmt.Printf("Location: participant=%s lat=%f lon=%f ts=%d\n",
				evt.ParticipantID, evt.Location.Latitude, evt.Location.Longitude, evt.Location.Timestamp)
			return nil
		}
	}
}

func openSession(ctx context.Context, url, token string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	hello, err := json.Marshal(proto.HelloData{Token: token, Protocol: proto.ProtocolVersion})
	if err != nil {
		conn.CloseNow()
		return nil, err
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("send hello: %w", err)
	}
	return conn, nil
}

func postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e transporthttp.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
