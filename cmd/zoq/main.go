// Zoq — CLI entry point.
//
// A terminal client for the Zoq social network: post feed, friends, direct
// messages over the live relay channel, and P2P audio/video calls negotiated
// over WebRTC.
//
// It can be launched interactively (credentials prompted) or with a cached
// token from a previous session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/zoqapp/zoq-go/internal/api"
	"github.com/zoqapp/zoq-go/internal/app"
	"github.com/zoqapp/zoq-go/internal/call"
	"github.com/zoqapp/zoq-go/internal/config"
	"github.com/zoqapp/zoq-go/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	apiBase := flag.String("api", "https://zoq.example.com/api", "REST API base URL")
	socketURL := flag.String("socket", "wss://zoq.example.com/ws", "Signaling relay WebSocket URL")
	tokenPath := flag.String("token", defaultTokenPath(), "Bearer token cache file")
	callTimeout := flag.Duration("callTimeout", config.DefaultCallTimeout, "Call negotiation timeout (0 disables)")
	video := flag.Bool("video", true, "Place calls with video")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Zoq — v%s", version))
	pterm.Println()

	cfg := config.Config{
		APIBase:     *apiBase,
		SocketURL:   *socketURL,
		TokenPath:   *tokenPath,
		CallTimeout: *callTimeout,
		Video:       *video,
	}

	rest, self, err := authenticate(ctx, cfg)
	if err != nil {
		util.LogError("authentication failed: %v", err)
		os.Exit(1)
	}
	util.LogSuccess("logged in as %s", self.Username)

	client, err := app.Connect(ctx, cfg, rest, *self)
	if err != nil {
		util.LogError("failed to connect to relay: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	util.StartStatsReporter(ctx)

	client.Calls.OnStatus(func(_ *call.Session, st call.Status, msg string) {
		util.LogInfo("call %s: %s", st, msg)
	})
	client.Calls.OnIncoming(func(ic *call.IncomingCall) {
		// The ring is surfaced between prompts; answering happens via the
		// "answer" command to keep the terminal single-threaded.
		pterm.Println()
		util.LogInfo("incoming call from %s — type 'answer' or 'reject'", ic.Username)
		pendingCall.set(ic)
	})

	if err := client.Chat.LoadConversations(ctx); err != nil {
		util.LogWarning("failed to load conversations: %v", err)
	}

	runLoop(ctx, cfg, client)
	util.LogInfo("session closed")
}

// authenticate restores a cached token or walks the login/register prompts.
func authenticate(ctx context.Context, cfg config.Config) (*api.Client, *api.User, error) {
	if token, err := os.ReadFile(cfg.TokenPath); err == nil {
		rest := api.New(cfg.APIBase, strings.TrimSpace(string(token)))
		if self, err := rest.Me(ctx); err == nil {
			return rest, self, nil
		} else if !api.IsUnauthorized(err) {
			return nil, nil, err
		}
		util.LogWarning("cached token rejected, please log in again")
	}

	rest := api.New(cfg.APIBase, "")

	mode, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Login", "Register"}).
		WithDefaultText("Welcome to Zoq").
		Show()
	pterm.Println()

	var auth *api.AuthResponse
	var err error
	if mode == "Register" {
		username := ask("Username")
		email := ask("Email")
		password := askSecret("Password")
		fullName := ask("Full name (optional)")
		auth, err = rest.Register(ctx, username, email, password, fullName)
	} else {
		email := ask("Email")
		password := askSecret("Password")
		auth, err = rest.Login(ctx, email, password)
	}
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.TokenPath), 0o700); err == nil {
		if err := os.WriteFile(cfg.TokenPath, []byte(auth.Token), 0o600); err != nil {
			util.LogWarning("failed to cache token: %v", err)
		}
	}
	return rest, &auth.User, nil
}

// runLoop is the interactive command loop.
func runLoop(ctx context.Context, cfg config.Config, client *app.Client) {
	help()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			util.LogWarning("relay connection lost")
			return
		default:
		}

		line, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("zoq").Show()
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch cmd {
		case "", "help":
			help()

		case "feed":
			showFeed(ctx, client)

		case "post":
			if _, err := client.API.CreatePost(ctx, arg, ""); err != nil {
				util.LogWarning("post failed: %v", err)
			}

		case "friends":
			showFriends(ctx, client)

		case "chats":
			for i, c := range client.Chat.Conversations() {
				marker := " "
				if c.UnreadCount > 0 {
					marker = fmt.Sprintf("(%d)", c.UnreadCount)
				}
				pterm.Printf("%2d. %-20s %s %s\n", i+1, c.Username, marker, c.LastMessage)
			}

		case "open":
			openThread(ctx, client, arg)

		case "send":
			peer := client.Chat.ActivePeer()
			if peer == "" {
				util.LogWarning("no open thread — use 'open <username>' first")
				continue
			}
			if err := client.Chat.Send(ctx, peer, arg); err != nil {
				util.LogWarning("send failed: %v", err)
			}

		case "call":
			placeCall(client, arg, cfg.Video)

		case "answer":
			answerCall(cfg.Video)

		case "reject":
			if ic := pendingCall.take(); ic != nil {
				ic.Reject()
			}

		case "mute":
			if s := client.Calls.Active(); s != nil {
				util.LogInfo("muted: %v", s.ToggleMute())
			}

		case "video":
			if s := client.Calls.Active(); s != nil {
				util.LogInfo("video off: %v", s.ToggleVideo())
			}

		case "hangup":
			if s := client.Calls.Active(); s != nil {
				s.Hangup()
			}

		case "quit", "exit":
			return

		default:
			util.LogWarning("unknown command %q", cmd)
		}
	}
}

func showFeed(ctx context.Context, client *app.Client) {
	posts, err := client.API.Feed(ctx)
	if err != nil {
		util.LogWarning("feed failed: %v", err)
		return
	}
	for _, p := range posts {
		like := " "
		if p.IsLiked {
			like = "♥"
		}
		pterm.Printf("%s %s: %s  [%d likes, %d comments]\n",
			like, p.Username, p.Content, p.LikesCount, p.CommentsCount)
	}
}

func showFriends(ctx context.Context, client *app.Client) {
	friends, err := client.API.Friends(ctx)
	if err != nil {
		util.LogWarning("friends failed: %v", err)
		return
	}
	for _, f := range friends {
		pterm.Printf("  %s (%s)\n", f.Username, f.FullName)
	}
}

// openThread resolves a username among friends and opens the thread.
func openThread(ctx context.Context, client *app.Client, username string) {
	friend, err := resolveFriend(ctx, client, username)
	if err != nil {
		util.LogWarning("%v", err)
		return
	}
	if err := client.Chat.OpenThread(ctx, friend.ID); err != nil {
		util.LogWarning("failed to open thread: %v", err)
		return
	}
	for _, m := range client.Chat.Messages() {
		who := friend.Username
		if m.FromUserID == client.Self.ID {
			who = "me"
		}
		pterm.Printf("  [%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	}
}

func placeCall(client *app.Client, username string, video bool) {
	friend, err := resolveFriend(context.Background(), client, username)
	if err != nil {
		util.LogWarning("%v", err)
		return
	}
	if _, err := client.Calls.StartCall(friend.ID, video); err != nil {
		util.LogWarning("call failed: %v", err)
	}
}

func answerCall(video bool) {
	ic := pendingCall.take()
	if ic == nil {
		util.LogWarning("no call waiting")
		return
	}
	if _, err := ic.Accept(video); err != nil {
		util.LogWarning("answer failed: %v", err)
	}
}

func resolveFriend(ctx context.Context, client *app.Client, username string) (*api.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("missing username")
	}
	friends, err := client.API.Friends(ctx)
	if err != nil {
		return nil, err
	}
	for i := range friends {
		if strings.EqualFold(friends[i].Username, username) {
			return &friends[i], nil
		}
	}
	return nil, fmt.Errorf("no friend named %q", username)
}

func help() {
	pterm.Println("  feed | post <text> | friends | chats | open <user> | send <text>")
	pterm.Println("  call <user> | answer | reject | mute | video | hangup | quit")
}

func ask(prompt string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).Show()
	return strings.TrimSpace(raw)
}

func askSecret(prompt string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(prompt).WithMask("*").Show()
	return strings.TrimSpace(raw)
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zoq-token"
	}
	return filepath.Join(home, ".config", "zoq", "token")
}

// callSlot holds the single unanswered incoming call between the handler
// goroutine and the command loop.
type callSlot struct {
	mu sync.Mutex
	ic *call.IncomingCall
}

func (s *callSlot) set(ic *call.IncomingCall) {
	s.mu.Lock()
	s.ic = ic
	s.mu.Unlock()
}

func (s *callSlot) take() *call.IncomingCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic := s.ic
	s.ic = nil
	return ic
}

var pendingCall callSlot
