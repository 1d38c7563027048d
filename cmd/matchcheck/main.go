package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-match-server/internal/matchclient"
)

func main() {
	baseURL := os.Getenv("MATCH_BASE_URL")
	wsURL := os.Getenv("MATCH_WS_URL")
	origin := os.Getenv("MATCH_ORIGIN")

	if baseURL == "" {
		log.Fatal("MATCH_BASE_URL is required")
	}

	client := matchclient.NewClient(baseURL,
		matchclient.WithOrigin(origin),
		matchclient.WithTimeout(8*time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := client.Status(ctx)
	if err != nil {
		log.Printf("/ error: %v", err)
	} else {
		log.Printf("/ ok: status=%s version=%s activeRooms=%d", st.Status, st.Version, st.ActiveRooms)
	}

	rooms, err := client.Rooms(ctx)
	if err != nil {
		log.Printf("/api/rooms error: %v", err)
	} else {
		log.Printf("/api/rooms ok: total=%d", rooms.Total)
		for _, r := range rooms.Rooms {
			log.Printf("  room=%s players=%d status=%s", r.RoomID, r.PlayerCount, r.Status)
		}
	}

	if cluster, err := client.ClusterRooms(ctx); err != nil {
		log.Printf("/api/cluster/rooms: %v", err)
	} else {
		log.Printf("/api/cluster/rooms ok: total=%d", cluster.Total)
	}

	if wsURL == "" {
		log.Println("MATCH_WS_URL not set; skipping WS check")
		return
	}

	wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer wcancel()
	sess, err := matchclient.Dial(wctx, wsURL, origin)
	if err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	defer sess.Close()

	rtt, err := sess.Ping(wctx)
	if err != nil {
		log.Printf("WS ping error: %v", err)
		return
	}
	log.Printf("WS ping ok: rtt=%s", rtt)
}
