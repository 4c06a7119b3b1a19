// Command client is a terminal chat client, mostly useful for poking
// at a running server: it prints every event it receives and turns
// slash commands into wire operations.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/olekukonko/tablewriter"
)

type envelope struct {
	Op   string `json:"op"`
	Data any    `json:"data"`
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	unread map[string]int
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server host:port")
	token := flag.String("token", "", "auth token")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/ws", *addr)
	if *token != "" {
		url += "?token=" + *token
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	c := &client{conn: conn, unread: make(map[string]int)}

	go c.readLoop()

	color.Green.Println("Connected. Type /help for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := c.handleLine(line); err != nil {
			color.Red.Println(err)
		}
	}
}

func (c *client) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			color.Red.Println("connection closed:", err)
			os.Exit(1)
		}
		var in inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		c.render(in)
	}
}

func (c *client) render(in inbound) {
	switch in.Event {
	case "error":
		color.Red.Printf("[error] %s\n", string(in.Data))
	case "messageCreated", "messageUpdated":
		var msg struct {
			Message struct {
				ID      string `json:"id"`
				Topic   string `json:"topic"`
				Content string `json:"content"`
				Author  struct {
					Name string `json:"name"`
				} `json:"author"`
			} `json:"message"`
		}
		if err := json.Unmarshal(in.Data, &msg); err != nil {
			return
		}
		header := color.New(color.BgBlack, color.FgGreen).Render(msg.Message.Author.Name)
		fmt.Printf("%s %s [%s] (%s)\n", header, msg.Message.Content, msg.Message.Topic, msg.Message.ID)
	case "unreadCountsChanged":
		var payload struct {
			Topic string `json:"topicRef"`
			Count int    `json:"count"`
		}
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			return
		}
		c.mu.Lock()
		c.unread[payload.Topic] = payload.Count
		c.mu.Unlock()
	case "typing":
		var payload struct {
			User struct {
				Name string `json:"name"`
			} `json:"user"`
			IsTyping bool `json:"isTyping"`
		}
		if err := json.Unmarshal(in.Data, &payload); err != nil {
			return
		}
		if payload.IsTyping {
			color.Gray.Printf("%s is typing...\n", payload.User.Name)
		}
	default:
		color.Cyan.Printf("[%s] %s\n", in.Event, string(in.Data))
	}
}

func (c *client) handleLine(line string) error {
	if !strings.HasPrefix(line, "/") {
		return fmt.Errorf("not a command: %s (see /help)", line)
	}
	parts := strings.SplitN(line, " ", 3)
	cmd := parts[0]

	switch cmd {
	case "/help":
		fmt.Println(`/join <topic>            subscribe (channel:<id>, dm:<id>, workspace:<id>)
/leave <topic>           unsubscribe
/msg <topic> <text>      send a message
/edit <msgId> <text>     edit own message
/del <msgId>             delete own message
/react <msgId> <emoji>   add reaction
/unreact <msgId> <emoji> remove reaction
/typing <topic> on|off   typing indicator
/read <topic>            mark topic read
/status <status> [text]  ONLINE|AWAY|OFFLINE|CUSTOM
/unread                  show unread counters`)
		return nil
	case "/unread":
		c.printUnread()
		return nil
	case "/join", "/leave", "/read":
		if len(parts) < 2 {
			return fmt.Errorf("usage: %s <topic>", cmd)
		}
		op := map[string]string{"/join": "joinTopic", "/leave": "leaveTopic", "/read": "markRead"}[cmd]
		return c.send(op, map[string]any{"topicRef": parts[1]})
	case "/msg":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /msg <topic> <text>")
		}
		return c.send("sendMessage", map[string]any{"topicRef": parts[1], "content": parts[2]})
	case "/edit":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /edit <msgId> <text>")
		}
		return c.send("editMessage", map[string]any{"messageId": parts[1], "content": parts[2]})
	case "/del":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /del <msgId>")
		}
		return c.send("deleteMessage", map[string]any{"messageId": parts[1]})
	case "/react", "/unreact":
		if len(parts) < 3 {
			return fmt.Errorf("usage: %s <msgId> <emoji>", cmd)
		}
		op := "addReaction"
		if cmd == "/unreact" {
			op = "removeReaction"
		}
		return c.send(op, map[string]any{"messageId": parts[1], "emoji": parts[2]})
	case "/typing":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /typing <topic> on|off")
		}
		return c.send("setTyping", map[string]any{"topicRef": parts[1], "isTyping": parts[2] == "on"})
	case "/status":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /status <status> [text]")
		}
		payload := map[string]any{"status": parts[1]}
		if len(parts) == 3 {
			payload["customStatus"] = parts[2]
		}
		return c.send("setStatus", payload)
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
}

func (c *client) send(op string, data any) error {
	return c.conn.WriteJSON(envelope{Op: op, Data: data})
}

func (c *client) printUnread() {
	c.mu.Lock()
	defer c.mu.Unlock()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Topic", "Unread"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for topic, count := range c.unread {
		table.Append([]string{topic, strconv.Itoa(count)})
	}
	table.Render()
}
