package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	emotionanalysis "github.com/zhouzirui/mindful/backend/internal/analysis/emotion"
	emotion "github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

var defaultTurns = []string{
	"I've been feeling really stressed about work lately.",
	"I can't sleep well and I'm tired all the time.",
	"Talking about it helps a little, thank you.",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	port := strings.TrimPrefix(os.Getenv("PORT"), ":")
	if port == "" {
		port = "8080"
	}

	addr := flag.String("addr", "http://localhost:"+port, "后端地址")
	persona := flag.String("persona", "", "角色 ID，留空使用默认角色")
	samples := flag.Int("samples", 4, "每种模态模拟的观测数量")
	seed := flag.Int64("seed", time.Now().UnixNano(), "模拟器随机种子")
	live := flag.Bool("live", false, "通过 WebSocket 实时通道推送观测")
	discard := flag.Bool("discard", false, "结束后丢弃会话数据")
	timeout := flag.Duration("timeout", 60*time.Second, "整体超时时间")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &apiClient{base: strings.TrimRight(*addr, "/"), http: &http.Client{Timeout: 30 * time.Second}}

	sessionID, err := client.createSession(ctx, *persona)
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	log.Printf("session=%s", sessionID)

	for _, text := range defaultTurns {
		reply, err := client.sendMessage(ctx, sessionID, text)
		if err != nil {
			log.Fatalf("发送消息失败: %v", err)
		}
		log.Printf("user: %s", text)
		log.Printf("assistant: %s", reply)
	}

	sim := emotionanalysis.NewSimulator(*seed)
	var inputs []emotionanalysis.Input
	for i := 0; i < *samples; i++ {
		inputs = append(inputs, sim.Sample(emotion.SourceVoice), sim.Sample(emotion.SourceFace))
	}

	if *live {
		err = client.pushLive(ctx, sessionID, inputs)
	} else {
		err = client.pushREST(ctx, sessionID, inputs)
	}
	if err != nil {
		log.Fatalf("推送观测失败: %v", err)
	}

	var summary emotion.Summary
	if err := client.do(ctx, http.MethodGet, "/api/analysis/"+sessionID+"/summary", nil, &summary); err != nil {
		log.Fatalf("获取摘要失败: %v", err)
	}
	printJSON(summary)

	if *discard {
		if err := client.do(ctx, http.MethodDelete, "/api/session/"+sessionID, nil, nil); err != nil {
			log.Fatalf("丢弃会话失败: %v", err)
		}
		log.Printf("session %s discarded", sessionID)
	}
}

type apiClient struct {
	base string
	http *http.Client
}

func (c *apiClient) createSession(ctx context.Context, personaID string) (string, error) {
	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		OpeningLine string `json:"openingLine"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/session", map[string]string{"personaId": personaID}, &resp); err != nil {
		return "", err
	}
	log.Printf("assistant: %s", resp.OpeningLine)
	return resp.Session.ID, nil
}

func (c *apiClient) sendMessage(ctx context.Context, sessionID, text string) (string, error) {
	var turn struct {
		Assistant struct {
			Content string `json:"content"`
		} `json:"assistant"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/session/"+sessionID+"/messages", map[string]string{"content": text}, &turn); err != nil {
		return "", err
	}
	return turn.Assistant.Content, nil
}

func (c *apiClient) pushREST(ctx context.Context, sessionID string, inputs []emotionanalysis.Input) error {
	for _, in := range inputs {
		var resp struct {
			Result emotion.Result `json:"result"`
		}
		body := map[string]any{"source": in.Source, "metrics": in.Metrics}
		if err := c.do(ctx, http.MethodPost, "/api/analysis/"+sessionID+"/observations", body, &resp); err != nil {
			return err
		}
		log.Printf("%s -> %s (%.2f)", in.Source, resp.Result.Category, resp.Result.Confidence)
	}
	return nil
}

func (c *apiClient) pushLive(ctx context.Context, sessionID string, inputs []emotionanalysis.Input) error {
	u, err := url.Parse(c.base)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/api/analysis/" + sessionID + "/live"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial live feed: %w", err)
	}
	defer conn.Close()

	// 首条消息为当前摘要
	var greeting json.RawMessage
	if err := conn.ReadJSON(&greeting); err != nil {
		return err
	}

	for _, in := range inputs {
		data, _ := json.Marshal(map[string]any{"source": in.Source, "metrics": in.Metrics})
		msg := map[string]any{"type": "observation", "data": json.RawMessage(data), "timestamp": time.Now().UnixMilli()}
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}

		var reply struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&reply); err != nil {
			return err
		}
		log.Printf("live %s -> %s %s", in.Source, reply.Type, reply.Data)
	}

	return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %s %s", method, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("encode output failed: %v", err)
	}
}
