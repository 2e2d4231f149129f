package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

// Exercises the chat surface end to end against a running server:
// create a conversation, hold a short dialogue (enough turns to trip
// the summarizer), page through history, then archive.

var (
	baseURL     = envOr("SIM_BASE_URL", "http://localhost:3000/api/chat/v1")
	accessToken = os.Getenv("SIM_ACCESS_TOKEN")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type apiEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type createConversationData struct {
	Id string `json:"id"`
}

type sendChatData struct {
	Reply struct {
		Seq     int64  `json:"seq"`
		Content string `json:"content"`
	} `json:"reply"`
	UsedContext bool   `json:"used_context"`
	HrvRange    string `json:"hrv_range"`
}

func main() {
	color.Cyan("🚀 NeuroHeart Chat Simulation Client")
	if accessToken == "" {
		color.Red("SIM_ACCESS_TOKEN is not set")
		os.Exit(1)
	}

	color.Yellow("\n[1] Create Conversation")
	var created createConversationData
	if err := call("POST", "/conversation", map[string]string{"title": "Simulation run"}, &created); err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Conversation: %s", created.Id)

	turns := []string{
		"I slept badly last night, around five hours.",
		"My chest felt tight during my morning run.",
		"Should I do my usual interval training today?",
		"What does my HRV trend look like this week?",
		"I also started a new medication on Monday.",
	}

	for i, text := range turns {
		color.Yellow("\n[2.%d] USER: %s", i+1, text)
		start := time.Now()
		var reply sendChatData
		err := call("POST", "/send", map[string]interface{}{
			"conversation_id": created.Id,
			"message":         text,
		}, &reply)
		if err != nil {
			color.Red("Failed: %v", err)
			continue
		}
		color.Green("AI (%v, seq %d, context=%v): %s",
			time.Since(start).Round(time.Millisecond), reply.Reply.Seq, reply.UsedContext, reply.Reply.Content)
	}

	color.Yellow("\n[3] Fetch History")
	var history []map[string]interface{}
	if err := call("GET", "/conversation/"+created.Id+"/history", nil, &history); err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("History has %d messages", len(history))
	}

	color.Yellow("\n[4] Archive Conversation")
	if err := call("PATCH", "/conversation/"+created.Id+"/archive", nil, nil); err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Archived")
	}

	color.Cyan("\nDone.")
}

func call(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %s: %s", resp.Status, string(raw))
	}

	if out == nil {
		return nil
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	return json.Unmarshal(envelope.Data, out)
}
