package discord

import (
	"strings"
	"testing"
	"time"

	"trade-signal-bot/internal/signal"

	"github.com/bwmarrin/discordgo"
)

func testSignal() *signal.Signal {
	return signal.Normalize(&signal.Signal{
		ID:          "sig-1",
		Asset:       "BTC",
		Direction:   signal.DirectionLong,
		Entry:       fptr(100),
		StopLoss:    fptr(90),
		TakeProfits: map[string]float64{"TP1": 110, "TP2": 120},
		Plan:        map[string]float64{"TP1": 50, "TP2": 50},
		Status:      signal.StatusRunning,
		AuthorID:    "user-1",
		CreatedAt:   time.Now(),
	})
}

func TestAnnouncementEmbedSplitsTitleAndBody(t *testing.T) {
	s := testSignal()
	embed := announcementEmbed(s)

	if !strings.Contains(embed.Title, "BTC") || !strings.Contains(embed.Title, "LONG") {
		t.Errorf("title should name asset and direction: %q", embed.Title)
	}
	if strings.Contains(embed.Description, embed.Title) {
		t.Error("description should not repeat the title line")
	}
	if !strings.Contains(embed.Description, "Entry:") || !strings.Contains(embed.Description, "TP1:") {
		t.Errorf("description missing levels: %q", embed.Description)
	}
	if embed.Color != colorLong {
		t.Errorf("long signal color = %#x, want %#x", embed.Color, colorLong)
	}

	s.Direction = signal.DirectionShort
	if announcementEmbed(s).Color != colorShort {
		t.Error("short signal should use the short color")
	}
}

func TestAnnouncementComponentsDisableUnsetAndHitLevels(t *testing.T) {
	s := testSignal()
	s.TPHits["TP1"] = true

	rows := announcementComponents(s)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	tpRow := rows[0].(discordgo.ActionsRow)
	if len(tpRow.Components) != len(signal.TakeProfitKeys) {
		t.Fatalf("expected %d TP buttons, got %d", len(signal.TakeProfitKeys), len(tpRow.Components))
	}

	buttons := make(map[string]discordgo.Button)
	for _, c := range tpRow.Components {
		b := c.(discordgo.Button)
		buttons[b.CustomID] = b
	}
	if !buttons[customIDTakeProfitPrefix+"TP1"].Disabled {
		t.Error("hit TP1 button should be disabled")
	}
	if buttons[customIDTakeProfitPrefix+"TP2"].Disabled {
		t.Error("unhit TP2 with a price should be enabled")
	}
	if !buttons[customIDTakeProfitPrefix+"TP3"].Disabled {
		t.Error("TP3 without a price should be disabled")
	}
}

func TestAnnouncementComponentsTerminalDisablesLifecycle(t *testing.T) {
	s := testSignal()
	s.Status = signal.StatusClosed

	rows := announcementComponents(s)
	actionRow := rows[1].(discordgo.ActionsRow)
	for _, c := range actionRow.Components {
		if b := c.(discordgo.Button); !b.Disabled {
			t.Errorf("button %s should be disabled on a closed signal", b.CustomID)
		}
	}

	manageRow := rows[2].(discordgo.ActionsRow)
	for _, c := range manageRow.Components {
		b := c.(discordgo.Button)
		if b.CustomID == customIDDelete && b.Disabled {
			t.Error("delete stays available on a closed signal")
		}
	}
}

func TestMentionContent(t *testing.T) {
	if got := mentionContent(nil); got != "" {
		t.Errorf("no roles should render empty, got %q", got)
	}
	got := mentionContent([]string{"111", "222"})
	if got != "<@&111> <@&222>" {
		t.Errorf("got %q", got)
	}
}

func TestPriceListValueRoundTrip(t *testing.T) {
	m := map[string]float64{"TP1": 110, "TP3": 130.5}
	if got := priceListValue(m); got != "110,,130.5" {
		t.Errorf("got %q, want %q", got, "110,,130.5")
	}
	if got := priceListValue(nil); got != "" {
		t.Errorf("empty map should render empty, got %q", got)
	}
}

func TestBuildCommandsUsesConfiguredName(t *testing.T) {
	cmds := BuildCommands("drako")
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Name != "drako" {
		t.Errorf("command name = %q, want drako", cmds[0].Name)
	}

	required := 0
	for _, opt := range cmds[0].Options {
		if opt.Required {
			required++
		}
	}
	if required != 2 {
		t.Errorf("expected asset and direction required, got %d required options", required)
	}
}
