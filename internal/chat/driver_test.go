package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stitchapp/stitch/internal/convlog"
	"github.com/stitchapp/stitch/internal/llm"
	"github.com/stitchapp/stitch/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openChatTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Turn{}, &models.ConversationArchive{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunTurn_TokenOrderAndDone(t *testing.T) {
	db := openChatTestDB(t)
	client := llm.NewScripted("hey", " there", "!")
	driver := NewDriver(convlog.New(db), client)

	events := collect(t, driver.RunTurn(context.Background(), "t1", "sys", "hello"))

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}
	wantTokens := []string{"hey", " there", "!"}
	for i, want := range wantTokens {
		if events[i].Type != EventToken || events[i].Text != want {
			t.Errorf("event %d = %+v, want token %q", i, events[i], want)
		}
	}
	last := events[len(events)-1]
	if last.Type != EventDone {
		t.Fatalf("last event = %+v, want done", last)
	}
	if last.Assembled != "hey there!" {
		t.Errorf("Assembled = %q", last.Assembled)
	}
}

func TestRunTurn_AppendsBothTurns(t *testing.T) {
	db := openChatTestDB(t)
	cl := convlog.New(db)
	driver := NewDriver(cl, llm.NewScripted("welcome"))

	collect(t, driver.RunTurn(context.Background(), "t1", "sys", "hi"))

	turns, err := cl.History("t1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("logged %d turns, want 2", len(turns))
	}
	if turns[0].Role != convlog.RoleUser || turns[0].Content != "hi" {
		t.Errorf("turn 1 = %+v", turns[0])
	}
	if turns[1].Role != convlog.RoleAssistant || turns[1].Content != "welcome" {
		t.Errorf("turn 2 = %+v", turns[1])
	}
}

func TestRunTurn_MidStreamErrorAppendsNothing(t *testing.T) {
	db := openChatTestDB(t)
	cl := convlog.New(db)
	client := llm.NewScripted("partial", " output")
	client.FailAfter = 2
	client.Err = errors.New("model hung up")
	driver := NewDriver(cl, client)

	events := collect(t, driver.RunTurn(context.Background(), "t1", "sys", "hi"))

	last := events[len(events)-1]
	if last.Type != EventError {
		t.Fatalf("last event = %+v, want error", last)
	}

	turns, _ := cl.History("t1", 0)
	if len(turns) != 0 {
		t.Errorf("partial turn was logged: %d rows", len(turns))
	}
}

func TestRunTurn_HistoryReplayedToModel(t *testing.T) {
	db := openChatTestDB(t)
	cl := convlog.New(db)
	cl.Append("t1", convlog.RoleUser, "first")
	cl.Append("t1", convlog.RoleAssistant, "reply")

	client := llm.NewScripted("ok")
	driver := NewDriver(cl, client)
	collect(t, driver.RunTurn(context.Background(), "t1", "sys", "second"))

	if client.LastSystem != "sys" {
		t.Errorf("system = %q", client.LastSystem)
	}
	if len(client.LastHistory) != 3 {
		t.Fatalf("history len = %d, want 3", len(client.LastHistory))
	}
	if client.LastHistory[0].Content != "first" || client.LastHistory[2].Content != "second" {
		t.Errorf("history = %+v", client.LastHistory)
	}
}

func TestRunTurn_SkipsEmptyFragments(t *testing.T) {
	db := openChatTestDB(t)
	driver := NewDriver(convlog.New(db), llm.NewScripted("", "a", "", "b"))

	events := collect(t, driver.RunTurn(context.Background(), "t1", "sys", "hi"))

	tokens := 0
	for _, ev := range events {
		if ev.Type == EventToken {
			tokens++
		}
	}
	if tokens != 2 {
		t.Errorf("token events = %d, want 2", tokens)
	}
}
