package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/yugisim/duel-server-go/internal/cards"
	"github.com/yugisim/duel-server-go/internal/game"
	"go.uber.org/zap"
)

// Tools exposes the dispatcher to MCP clients. Every tool answers with the JSON
// encoding of the resulting session state.
type Tools struct {
	dispatcher *game.Dispatcher
	logger     *zap.Logger
}

func NewTools(dispatcher *game.Dispatcher, logger *zap.Logger) *Tools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{dispatcher: dispatcher, logger: logger}
}

// NewServer builds an MCP server with every duel tool registered.
func NewServer(t *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("duelserver", version)
	t.Register(s)
	return s
}

// Register adds all duel tools to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(createSessionTool(), t.handleCreateSession)
	s.AddTool(listSessionsTool(), t.handleListSessions)
	s.AddTool(joinSessionTool(), t.handleJoinSession)
	s.AddTool(takeActionTool(), t.handleTakeAction)
	s.AddTool(getSessionTool(), t.handleGetSession)
}

// --- Tool definitions ---

func createSessionTool() mcp.Tool {
	return mcp.NewTool("create_session",
		mcp.WithDescription("Create an empty two-player duel session and return its id."),
	)
}

func listSessionsTool() mcp.Tool {
	return mcp.NewTool("list_sessions",
		mcp.WithDescription("List the ids of all live sessions."),
	)
}

func joinSessionTool() mcp.Tool {
	return mcp.NewTool("join_session",
		mcp.WithDescription("Seat a player in a session. The deck is given either inline as JSON "+
			"({\"main\":[{\"name\":...,\"count\":...}]} or {\"Card Name\": count}) or as a path to a JSON/YAML/TOML deck file."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to join")),
		mcp.WithString("actor_id", mcp.Required(), mcp.Description("Stable id of the joining player")),
		mcp.WithString("name", mcp.Description("Display name")),
		mcp.WithString("deck", mcp.Description("Inline deck list as JSON")),
		mcp.WithString("deck_file", mcp.Description("Path to a deck list file")),
	)
}

func takeActionTool() mcp.Tool {
	return mcp.NewTool("take_action",
		mcp.WithDescription("Apply an action for a seated player: draw, play_card, move_to_graveyard, "+
			"move_to_banished, attack, adjust_life, shuffle, end_turn or leave. "+
			"Turn-gated actions fail unless the actor holds the turn."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("actor_id", mcp.Required(), mcp.Description("Acting player")),
		mcp.WithString("action", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("card_id", mcp.Description("Card instance id for card actions, attacker for attack")),
		mcp.WithString("target_id", mcp.Description("Defending card instance id; omit for a direct attack")),
		mcp.WithNumber("delta", mcp.Description("Life point change for adjust_life")),
	)
}

func getSessionTool() mcp.Tool {
	return mcp.NewTool("get_session",
		mcp.WithDescription("Get the current state of a session. Read-only."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	)
}

// --- Tool handlers ---

func (t *Tools) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := t.dispatcher.Create()
	return mcp.NewToolResultText(respondJSON(map[string]string{"session_id": id})), nil
}

func (t *Tools) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(respondJSON(map[string]any{"sessions": t.dispatcher.Registry().IDs()})), nil
}

func (t *Tools) handleJoinSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	actorID := request.GetString("actor_id", "")

	list, err := deckFromRequest(request)
	if err != nil {
		return mcp.NewToolResultErrorf("Invalid deck: %v", err), nil
	}

	res, err := t.dispatcher.Dispatch(sessionID, game.Action{
		Type:        game.ActionJoin,
		ActorID:     actorID,
		DisplayName: request.GetString("name", actorID),
		Deck:        list,
	})
	if err != nil {
		return mcp.NewToolResultErrorf("join failed: %v", err), nil
	}
	return mcp.NewToolResultText(respondJSON(res)), nil
}

func deckFromRequest(request mcp.CallToolRequest) (cards.DeckList, error) {
	if path := request.GetString("deck_file", ""); path != "" {
		return cards.LoadDeckListFile(path)
	}
	if inline := request.GetString("deck", ""); inline != "" {
		return cards.ParseDeckList([]byte(inline), "json")
	}
	return cards.DeckList{}, fmt.Errorf("one of deck or deck_file is required")
}

func (t *Tools) handleTakeAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actionType, err := game.ParseActionType(request.GetString("action", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if actionType == game.ActionJoin {
		return mcp.NewToolResultError("use join_session to join"), nil
	}

	sessionID := request.GetString("session_id", "")
	res, err := t.dispatcher.Dispatch(sessionID, game.Action{
		Type:     actionType,
		ActorID:  request.GetString("actor_id", ""),
		CardID:   request.GetString("card_id", ""),
		TargetID: request.GetString("target_id", ""),
		Delta:    request.GetInt("delta", 0),
	})
	if err != nil {
		t.logger.Debug("mcp action rejected", zap.String("session_id", sessionID), zap.Error(err))
		return mcp.NewToolResultErrorf("%s failed: %v", actionType, err), nil
	}
	return mcp.NewToolResultText(respondJSON(res)), nil
}

func (t *Tools) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.dispatcher.Snapshot(request.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(respondJSON(res)), nil
}

func respondJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
