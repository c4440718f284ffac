package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hoot-im/hoot/internal/client"
	"github.com/hoot-im/hoot/internal/config"
	"github.com/hoot-im/hoot/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	phoneFlag := flag.String("phone", "", "user phone number (init)")
	nameFlag := flag.String("name", "", "user display name (init)")
	addrFlag := flag.String("addr", "", "daemon listen address (init)")
	searchFlag := flag.String("search", "", "chat list search filter (chats)")
	descFlag := flag.Bool("desc", false, "most-recent-first ordering (watch)")
	likedFlag := flag.Bool("liked", false, "currently observed liked state (like)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "init" {
		cmdInit(sessionName, *phoneFlag, *nameFlag, *addrFlag)
		return
	}

	cfg, err := config.LoadSession(session.SessionConfigPath(sessionName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: session %q is not initialized: %v\n", sessionName, err)
		fmt.Fprintf(os.Stderr, "run: hootctl --session %s init --phone <number> --name <name>\n", sessionName)
		os.Exit(1)
	}

	c := client.New(cfg.ListenAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Login(ctx, cfg.UserPhone); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot reach daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "contacts":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: hootctl contacts <number>")
			os.Exit(1)
		}
		cmdContacts(ctx, c, args[1], *jsonFlag)
	case "chats":
		cmdChats(c, *searchFlag, *jsonFlag)
	case "open":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: hootctl open <number>")
			os.Exit(1)
		}
		cmdOpen(ctx, c, args[1])
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: hootctl send <conversation-id> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "))
	case "watch":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: hootctl [--desc] watch <conversation-id>")
			os.Exit(1)
		}
		cmdWatch(c, args[1], *descFlag, *jsonFlag)
	case "like":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: hootctl [--liked] like <conversation-id> <message-id>")
			os.Exit(1)
		}
		cmdLike(ctx, c, args[1], args[2], *likedFlag)
	case "delete":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: hootctl delete <conversation-id> <message-id>...")
			os.Exit(1)
		}
		cmdDelete(ctx, c, args[1], args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: hootctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  init --phone <n> --name <n>   Initialize session config")
	fmt.Fprintln(os.Stderr, "  status                        Show daemon status")
	fmt.Fprintln(os.Stderr, "  contacts <number>             Resolve a phone number to a name")
	fmt.Fprintln(os.Stderr, "  chats [--search <term>]       Watch the chat list")
	fmt.Fprintln(os.Stderr, "  open <number>                 Open (or create) a conversation")
	fmt.Fprintln(os.Stderr, "  send <conv-id> <text>         Send a message")
	fmt.Fprintln(os.Stderr, "  watch <conv-id> [--desc]      Watch a conversation")
	fmt.Fprintln(os.Stderr, "  like <conv-id> <msg-id>       Toggle a like")
	fmt.Fprintln(os.Stderr, "  delete <conv-id> <msg-id>...  Delete own messages")
}

func cmdInit(sessionName, phone, name, addr string) {
	if phone == "" {
		fmt.Fprintln(os.Stderr, "error: --phone is required")
		os.Exit(1)
	}
	if err := session.EnsureDir(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg := &config.SessionConfig{
		UserPhone:   phone,
		DisplayName: name,
		ListenAddr:  addr,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = config.DefaultListenAddr
	}
	path := session.SessionConfigPath(sessionName)
	if err := config.SaveSession(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session %q initialized (%s)\n", sessionName, path)
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	state, err := c.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]string{"state": state})
		return
	}
	fmt.Printf("Status: %s\n", state)
}

func cmdContacts(ctx context.Context, c *client.Client, number string, jsonOut bool) {
	name, err := c.ResolveContact(ctx, number)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(map[string]string{"number": number, "name": name})
		return
	}
	fmt.Printf("%s: %s\n", number, name)
}

func cmdChats(c *client.Client, search string, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := c.WatchChats(ctx, search, func(entries []client.ChatEntry) {
		if jsonOut {
			outputJSON(entries)
			return
		}
		fmt.Printf("--- %d conversation(s) ---\n", len(entries))
		for _, e := range entries {
			fmt.Printf("%-24s %-20s %s\n",
				e.ConversationID,
				strings.Join(e.ParticipantNames, ", "),
				e.LastMessageText)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdOpen(ctx context.Context, c *client.Client, number string) {
	id, err := c.OpenConversation(ctx, number)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(id)
}

func cmdSend(ctx context.Context, c *client.Client, conversationID, text string) {
	if err := c.Send(ctx, conversationID, text); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdWatch(c *client.Client, conversationID string, descending, jsonOut bool) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := c.WatchConversation(ctx, conversationID, descending, func(msgs []client.Message) {
		if jsonOut {
			outputJSON(msgs)
			return
		}
		fmt.Printf("--- %d message(s) ---\n", len(msgs))
		for _, m := range msgs {
			liked := " "
			if m.Liked {
				liked = "*"
			}
			ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
			fmt.Printf("[%s] %s %s: %s\n", ts, liked, m.SenderID, m.Text)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdLike(ctx context.Context, c *client.Client, conversationID, messageID string, currentLiked bool) {
	if err := c.ToggleLike(ctx, conversationID, messageID, currentLiked); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func cmdDelete(ctx context.Context, c *client.Client, conversationID string, messageIDs []string) {
	deleted, err := c.Delete(ctx, conversationID, messageIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d message(s)\n", deleted)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
