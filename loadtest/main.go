package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	WSBase    = "ws://localhost:8080"
	PairCount = 250 // ⚠️ Start small. 250 pairs = 500 sockets.
	MsgCount  = 20  // Messages per peer
)

var received atomic.Int64

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d rooms, %d messages per peer...", PairCount, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Printf("✅ LOAD TEST COMPLETE: %d frames relayed", received.Load())
}

func runPair(pairID int) {
	room := fmt.Sprintf("loadtest-%d", pairID)

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spamRoom(&wsWg, room, "a")
	go spamRoom(&wsWg, room, "b")
	wsWg.Wait()
}

func spamRoom(wg *sync.WaitGroup, room, peer string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(WSBase+"/"+room, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s/%s]: %v", room, peer, err)
		return
	}
	defer conn.Close()

	// Drain the partner's frames so relay backpressure is realistic.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	for i := 0; i < MsgCount; i++ {
		msg := map[string]interface{}{
			"type": "user_message",
			"text": fmt.Sprintf("LoadTest Msg %d from %s", i, peer),
		}
		data, _ := json.Marshal(msg)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("❌ Send Fail [%s/%s]: %v", room, peer, err)
			break
		}
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}

	// Give the relay a moment to flush before the socket drops.
	time.Sleep(200 * time.Millisecond)
}
