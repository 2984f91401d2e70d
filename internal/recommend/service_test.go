package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildkeeb/engine/internal/build"
	"github.com/buildkeeb/engine/internal/catalog"
	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/criteria"
	"github.com/buildkeeb/engine/internal/llm"
	"github.com/buildkeeb/engine/internal/observability"
	"github.com/buildkeeb/engine/internal/validate"
)

type fakeLLM struct {
	mu    sync.Mutex
	calls []llm.Invocation
	out   llm.Outcome
	err   error
}

func (f *fakeLLM) Invoke(_ context.Context, inv llm.Invocation) (llm.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inv)
	return f.out, f.err
}

func (f *fakeLLM) last(t *testing.T) llm.Invocation {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeUsage struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeUsage) Record(userID, action, period string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, userID+"/"+action+"/"+period)
}

type brokenReader struct{}

func (brokenReader) ListSwitches(context.Context) ([]catalog.Switch, error) {
	return nil, errors.New("down")
}
func (brokenReader) ListBoards(context.Context) ([]catalog.Board, error) {
	return nil, errors.New("down")
}
func (brokenReader) ListKeycapSets(context.Context) ([]catalog.KeycapSet, error) {
	return nil, errors.New("down")
}
func (brokenReader) ListAccessories(context.Context) ([]catalog.Accessory, error) {
	return nil, errors.New("down")
}
func (brokenReader) ActiveSponsorships(context.Context) ([]catalog.Sponsorship, error) {
	return nil, errors.New("down")
}

func testCatalog() catalog.Snapshot {
	snap := catalog.Snapshot{
		Boards: []catalog.Board{
			{ID: "tofu65", Brand: "KBDfans", Name: "Tofu65 2.0", Price: 129, Size: "65%", HotSwap: true, InStock: true, Rating: 4.6},
			{ID: "q1", Brand: "Keychron", Name: "Q1 Pro", Price: 199, Size: "75%", Wireless: true, HotSwap: true, InStock: true, Rating: 4.7},
			{ID: "mode65", Brand: "Mode", Name: "Sixty Five", Price: 329, Size: "65%", InStock: true, Rating: 4.9},
			{ID: "tkl1", Brand: "Keychron", Name: "Q3", Price: 189, Size: "TKL", HotSwap: true, InStock: true, Rating: 4.4},
		},
		KeycapSets: []catalog.KeycapSet{
			{ID: "olivia", Brand: "GMK", Name: "Olivia", Price: 150, Material: "ABS", InStock: true, Rating: 4.8},
			{ID: "wob", Brand: "ePBT", Name: "WoB", Price: 45, Material: "PBT", InStock: true, Rating: 4.3},
			{ID: "akko", Brand: "Akko", Name: "Black Gold", Price: 40, Material: "PBT", InStock: true, Rating: 4.0},
		},
		Accessories: []catalog.Accessory{
			{ID: "tape", Name: "Tape mod", Price: 5, Category: "mod", InStock: true},
		},
		Sponsorships: []catalog.Sponsorship{{ProductName: "Keychron Q1 Pro", VendorName: "Keychron"}},
	}
	linear := []string{"Oil King", "Black Ink V2", "Yellow KS-3", "Milky Yellow", "CJ", "Alpaca"}
	for i, name := range linear {
		snap.Switches = append(snap.Switches, catalog.Switch{
			ID: fmt.Sprintf("lin-%d", i), Brand: "Gateron", Name: name, Price: 0.65,
			Type: catalog.SwitchLinear, Sound: "deep thock", InStock: true, Rating: 4.0 + float64(i)/10,
		})
	}
	for i, name := range []string{"Boba U4T", "Zealios V2", "Holy Panda"} {
		snap.Switches = append(snap.Switches, catalog.Switch{
			ID: fmt.Sprintf("tac-%d", i), Brand: "Gazzew", Name: name, Price: 0.9,
			Type: catalog.SwitchTactile, Sound: "clacky", InStock: true, Rating: 4.9,
		})
	}
	return snap
}

func modelBuild() build.Bundle {
	return build.Bundle{
		Name:    "Deep Thock 65",
		Summary: "A dampened 65% build with heavy linears.",
		Keyboard: build.Component{Name: "KBDfans Tofu65 2.0", Price: 128.5, Reason: "solid aluminum case"},
		Switches: build.SwitchComponent{
			Component:      build.Component{Name: "gateron oil kings", Price: 63, Reason: "deep sound"},
			Quantity:       70,
			PricePerSwitch: 0.90,
		},
		Keycaps:        build.Component{Name: "GMK Olivia", Price: 150, Reason: "thick ABS"},
		Stabilizers:    build.Component{Name: "Durock V2", Price: 22, Reason: "rattle free"},
		Mods:           []build.Modification{{Name: "Tape mod", Cost: 5, Effect: "deeper", Difficulty: "beginner"}},
		EstimatedTotal: 999,
		SoundProfile:   "deep thock",
		Difficulty:     "beginner",
		Notes:          "Lube the stabilizers.",
	}
}

func newService(t *testing.T, svc llm.Service, rec UsageRecorder) *Service {
	t.Helper()
	now := func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return NewService(observability.Nop(), catalog.NewMemoryReader(testCatalog()), svc, config.DefaultConfig(), Options{Usage: rec, Now: now})
}

func TestRecommend_ThockyScenario(t *testing.T) {
	b := modelBuild()
	fake := &fakeLLM{out: llm.Outcome{Build: &b}}
	rec := &fakeUsage{}
	svc := newService(t, fake, rec)

	ctx := observability.ContextWithUserID(context.Background(), "user-1")
	resp, err := svc.Recommend(ctx, Request{Text: "I want the deepest, most thocky sound possible, budget doesn't matter"})
	require.NoError(t, err)

	assert.Equal(t, "thocky", resp.Criteria.Sound)
	assert.Nil(t, resp.Criteria.Budget)

	inv := fake.last(t)
	assert.True(t, inv.ForceSchema)
	assert.NotEmpty(t, inv.Schema)
	assert.Contains(t, inv.System, "Gateron Oil King")
	assert.NotContains(t, inv.System, "Holy Panda", "tactile switches are filtered out")
	assert.Contains(t, inv.System, "Keychron Q1 Pro", "sponsorship addendum")

	var typeStep bool
	for _, s := range resp.Filter {
		if s.Predicate == "type:linear" {
			typeStep = true
			assert.True(t, s.Applied)
			assert.Equal(t, 6, s.After)
		}
	}
	assert.True(t, typeStep)

	got := resp.Build
	assert.False(t, got.Error)
	assert.Equal(t, "Gateron Oil King", got.Switches.Name)
	assert.Equal(t, "lin-0", got.Switches.ProductID)
	assert.Equal(t, 0.65, got.Switches.PricePerSwitch)
	assert.Equal(t, 45.5, got.Switches.Price)
	assert.Equal(t, 128.5, got.Keyboard.Price, "difference under a dollar is kept")
	assert.Equal(t, "/products/boards/tofu65", got.Keyboard.DetailPath)
	assert.Equal(t, build.Round2(128.5+45.5+150+22+5), got.EstimatedTotal)
	assert.Equal(t, build.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, 3, resp.Validation.Corrections())

	assert.Equal(t, []string{"user-1/recommend/2026-10"}, rec.actions)
}

func TestRecommend_AnswersWin(t *testing.T) {
	b := modelBuild()
	fake := &fakeLLM{out: llm.Outcome{Build: &b}}
	svc := newService(t, fake, nil)

	resp, err := svc.Recommend(context.Background(), Request{
		Text: "I'd like a TKL under $500",
		Answers: []criteria.Answer{
			{QuestionID: "size", Value: "65"},
			{QuestionID: "budget", Value: 200},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Criteria.Budget)
	assert.Equal(t, 200, *resp.Criteria.Budget)
	assert.Equal(t, "65%", resp.Criteria.Size)
	assert.Contains(t, fake.last(t).System, "$200")
}

func TestRecommend_AnswersOnly(t *testing.T) {
	b := modelBuild()
	fake := &fakeLLM{out: llm.Outcome{Build: &b}}
	svc := newService(t, fake, nil)

	_, err := svc.Recommend(context.Background(), Request{
		Answers: []criteria.Answer{{QuestionID: "size", Value: "tkl"}},
	})
	require.NoError(t, err)
	opening := fake.last(t).Turns[0].Text
	assert.True(t, strings.HasPrefix(opening, "Recommend a custom mechanical keyboard build"))
	assert.Contains(t, opening, "TKL")
}

func TestRecommend_EmptyRequest(t *testing.T) {
	svc := newService(t, &fakeLLM{}, nil)
	_, err := svc.Recommend(context.Background(), Request{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestRecommend_ServiceFailureYieldsErrorBundle(t *testing.T) {
	fake := &fakeLLM{err: fmt.Errorf("%w: status 502", llm.ErrServiceUnavailable)}
	rec := &fakeUsage{}
	svc := newService(t, fake, rec)

	ctx := observability.ContextWithUserID(context.Background(), "user-1")
	resp, err := svc.Recommend(ctx, Request{Text: "quiet tactile board"})
	require.NoError(t, err)
	assert.True(t, resp.Build.Error)
	assert.Zero(t, resp.Build.EstimatedTotal)
	assert.Empty(t, resp.Validation.Matches)
	assert.Empty(t, rec.actions, "failed requests are not billed")
}

func TestRecommend_CatalogUnavailable(t *testing.T) {
	svc := NewService(nil, brokenReader{}, &fakeLLM{}, config.DefaultConfig(), Options{})
	_, err := svc.Recommend(context.Background(), Request{Text: "thocky"})
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
}

func TestTweak_ReplaysPreviousBuild(t *testing.T) {
	updated := modelBuild()
	updated.Keyboard = build.Component{Name: "Keychron Q1 Pro", Price: 199, Reason: "wireless"}
	fake := &fakeLLM{out: llm.Outcome{Build: &updated}}
	svc := newService(t, fake, nil)

	resp, err := svc.Tweak(context.Background(), TweakRequest{
		OriginalRequest: "thocky 65% board",
		Previous:        modelBuild(),
		Change:          "make it wireless",
	})
	require.NoError(t, err)

	require.NotNil(t, resp.Criteria.Wireless)
	assert.True(t, *resp.Criteria.Wireless)

	inv := fake.last(t)
	require.Len(t, inv.Turns, 4)
	assert.Equal(t, "thocky 65% board", inv.Turns[0].Text)
	require.NotNil(t, inv.Turns[1].Build)
	assert.Equal(t, "Deep Thock 65", inv.Turns[1].Build.Name)
	assert.Equal(t, llm.RoleTool, inv.Turns[2].Role)
	assert.Equal(t, "make it wireless", inv.Turns[3].Text)

	assert.Equal(t, "q1", resp.Build.Keyboard.ProductID)
}

func TestTweak_RequiresChange(t *testing.T) {
	svc := newService(t, &fakeLLM{}, nil)
	_, err := svc.Tweak(context.Background(), TweakRequest{Previous: modelBuild()})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestChat_TextReply(t *testing.T) {
	fake := &fakeLLM{out: llm.Outcome{Text: "Do you prefer linear or tactile switches?"}}
	rec := &fakeUsage{}
	svc := newService(t, fake, rec)

	ctx := observability.ContextWithUserID(context.Background(), "user-2")
	resp, err := svc.Chat(ctx, ChatRequest{Messages: []Message{
		{Role: "user", Content: "I want something quiet for the office"},
		{Role: "assistant", Content: "What size?"},
		{Role: "user", Content: "65 percent, wireless"},
	}})
	require.NoError(t, err)

	assert.Equal(t, "Do you prefer linear or tactile switches?", resp.Reply)
	assert.Nil(t, resp.Build)
	assert.Equal(t, "quiet", resp.Criteria.Sound)
	require.NotNil(t, resp.Criteria.Wireless)

	inv := fake.last(t)
	assert.False(t, inv.ForceSchema)
	assert.Len(t, inv.Turns, 3)
	assert.Equal(t, []string{"user-2/chat/2026-10"}, rec.actions)
}

func TestChat_BuildIsValidated(t *testing.T) {
	b := modelBuild()
	fake := &fakeLLM{out: llm.Outcome{Build: &b}}
	svc := newService(t, fake, nil)

	prev := modelBuild()
	resp, err := svc.Chat(context.Background(), ChatRequest{Messages: []Message{
		{Role: "user", Content: "thocky please"},
		{Role: "assistant", Build: &prev},
		{Role: "user", Content: "looks good, finalize it"},
	}})
	require.NoError(t, err)
	require.NotNil(t, resp.Build)
	require.NotNil(t, resp.Validation)
	assert.Equal(t, "Gateron Oil King", resp.Build.Switches.Name)
	assert.Equal(t, validate.Corrected, resp.Validation.Matches[1].Outcome)

	inv := fake.last(t)
	require.Len(t, inv.Turns, 4)
	assert.Equal(t, llm.RoleAssistant, inv.Turns[1].Role)
	assert.Equal(t, llm.RoleTool, inv.Turns[2].Role)
}

func TestChat_Empty(t *testing.T) {
	svc := newService(t, &fakeLLM{}, nil)
	_, err := svc.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: " "}}})
	assert.ErrorIs(t, err, ErrEmptyRequest)
}
