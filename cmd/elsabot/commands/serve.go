package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var flagListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket dialog server",
	Long: `Run the dialog server.

POST /robot/api/query answers one turn; /robot/api/ws upgrades to a
WebSocket carrying the same request/response frames. Session IDs are
issued on first contact and returned with every reply.

Example:
  elsabot serve --config bot.yaml --listen :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (overrides config)")
}

// queryRequest is one dialog turn from a client.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// queryResponse is the reply envelope.
type queryResponse struct {
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	SessionID string    `json:"sessionId"`
	Data      replyData `json:"data"`
}

type replyData struct {
	Response string `json:"response"`
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagListen != "" {
		cfg.Listen = flagListen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bot, err := buildBot(ctx, cfg)
	if err != nil {
		return err
	}
	defer bot.Close(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/robot/api/query", handleQuery(bot))
	mux.HandleFunc("/robot/api/ws", handleWS(bot))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Shutdown(shutCtx)
		cancel()
	}()

	slog.Info("dialog server listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// answer runs one turn, issuing a session ID when the client has none.
func answer(ctx context.Context, bot *Bot, req queryRequest) queryResponse {
	sid := req.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}
	reply, err := bot.Sessions.Respond(ctx, sid, req.Query)
	if err != nil {
		slog.Error("respond failed", "session", sid, "error", err)
		return queryResponse{Code: 1, Message: "internal error", SessionID: sid}
	}
	return queryResponse{
		Code:      0,
		Message:   "ok",
		SessionID: sid,
		Data:      replyData{Response: reply},
	}
}

func handleQuery(bot *Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := answer(r.Context(), bot, req)
		w.Header().Set("Content-Type", "application/json")
		if resp.Code != 0 {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(resp)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func handleWS(bot *Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		// One session per connection unless the client supplies its own.
		connSession := uuid.NewString()
		for {
			var req queryRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("websocket read", "error", err)
				}
				return
			}
			if req.SessionID == "" {
				req.SessionID = connSession
			}
			resp := answer(r.Context(), bot, req)
			if err := conn.WriteJSON(resp); err != nil {
				slog.Debug("websocket write", "error", err)
				return
			}
		}
	}
}
