package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbot/internal/adapters/observability"
	"hotelbot/internal/domain"
)

// maxChoices bounds the disambiguation keyboard; labels are cut to maxLabel runes.
const (
	maxChoices = 3
	maxLabel   = 64
)

type Choice struct {
	Label   string `json:"label"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Calendar asks the transport to show a date picker starting at MinDate.
type Calendar struct {
	Step    domain.Step `json:"step"`
	MinDate string      `json:"min_date"`
}

type Reply struct {
	Text     string    `json:"text"`
	Choices  []Choice  `json:"choices,omitempty"`
	Photos   []string  `json:"photos,omitempty"`
	Calendar *Calendar `json:"calendar,omitempty"`
}

// Outcome is everything a turn wants shown. AwaitInput is set when the next
// free-text message is expected to answer a question.
type Outcome struct {
	Replies    []Reply `json:"replies"`
	AwaitInput bool    `json:"await_input"`
}

func say(text string) Outcome { return Outcome{Replies: []Reply{{Text: text}}} }

type ConversationConfig struct {
	LockTTL      time.Duration
	LockWait     time.Duration
	HistoryLimit int
	Currency     string
}

// Conversation drives a chat through a search: it loads the session per turn,
// feeds input to the state machine and runs the search once it is complete.
type Conversation struct {
	store    domain.Repository
	machine  *domain.Machine
	resolver *Resolver
	search   *Aggregator
	photos   *PhotoService
	locker   domain.Locker
	cfg      ConversationConfig
}

func NewConversation(
	store domain.Repository,
	m *domain.Machine,
	r *Resolver,
	a *Aggregator,
	p *PhotoService,
	l domain.Locker,
	cfg ConversationConfig,
) *Conversation {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 90 * time.Second
	}
	if cfg.LockWait <= 0 {
		cfg.LockWait = 5 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}
	return &Conversation{store: store, machine: m, resolver: r, search: a, photos: p, locker: l, cfg: cfg}
}

func (c *Conversation) ProcessCommand(ctx context.Context, chatID int64, text string) Outcome {
	return c.withChat(ctx, chatID, func(ctx context.Context) Outcome {
		return c.command(ctx, chatID, text)
	})
}

func (c *Conversation) ProcessUserMessage(ctx context.Context, chatID int64, text string) Outcome {
	return c.withChat(ctx, chatID, func(ctx context.Context) Outcome {
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			return c.command(ctx, chatID, text)
		}
		return c.message(ctx, chatID, text)
	})
}

// ProcessCallback handles a keyboard or calendar selection encoded as "step:value".
func (c *Conversation) ProcessCallback(ctx context.Context, chatID int64, payload string) Outcome {
	return c.withChat(ctx, chatID, func(ctx context.Context) Outcome {
		return c.callback(ctx, chatID, payload)
	})
}

func (c *Conversation) withChat(ctx context.Context, chatID int64, fn func(context.Context) Outcome) Outcome {
	if c.locker == nil {
		return fn(ctx)
	}
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LockWait)
	unlock, err := c.locker.Lock(lctx, fmt.Sprintf("lock:chat:%d", chatID), c.cfg.LockTTL)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrLocked) {
			return say(msgBusy)
		}
		return c.fail(chatID, "lock", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("chat unlock failed")
		}
	}()
	return fn(ctx)
}

func (c *Conversation) command(ctx context.Context, chatID int64, text string) Outcome {
	if cmd, ok := domain.ParseCommand(text); ok {
		return c.start(ctx, chatID, cmd)
	}
	name := ""
	if f := strings.Fields(text); len(f) > 0 {
		name, _, _ = strings.Cut(strings.ToLower(f[0]), "@")
	}
	switch name {
	case "/start":
		return say(msgStart)
	case "/help":
		return say(msgHelp)
	case "/history":
		return c.history(ctx, chatID)
	case "/cancel":
		return c.cancel(ctx, chatID)
	}
	return say(msgUnknownCommand)
}

func (c *Conversation) start(ctx context.Context, chatID int64, cmd domain.Command) Outcome {
	s, err := c.store.GetActiveSession(ctx, chatID)
	switch {
	case err == nil:
		step := s.CurrentStep()
		if step == domain.StepComplete {
			return c.finish(ctx, &s)
		}
		return Outcome{
			Replies:    []Reply{{Text: fmt.Sprintf(msgSessionActive, s.Command)}, c.ask(s, step)},
			AwaitInput: true,
		}
	case !errors.Is(err, domain.ErrNotFound):
		return c.fail(chatID, "load session", err)
	}

	s, err = c.store.AddSession(ctx, domain.NewSession(chatID, cmd, c.machine.Now()))
	if err != nil {
		return c.fail(chatID, "add session", err)
	}
	observability.ObserveSession(string(cmd), "started")
	log.Info().Int64("chat_id", chatID).Int64("session_id", s.ID).Str("command", string(cmd)).Msg("session started")

	return Outcome{
		Replies:    []Reply{{Text: commandIntro[cmd]}, c.ask(s, s.CurrentStep())},
		AwaitInput: true,
	}
}

func (c *Conversation) message(ctx context.Context, chatID int64, text string) Outcome {
	s, err := c.store.GetActiveSession(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgNoSession)
	}
	if err != nil {
		return c.fail(chatID, "load session", err)
	}

	switch step := s.CurrentStep(); step {
	case domain.StepComplete:
		return c.finish(ctx, &s)
	case domain.StepLocation:
		return c.location(ctx, &s, text)
	default:
		return c.apply(ctx, &s, step, text, "")
	}
}

func (c *Conversation) callback(ctx context.Context, chatID int64, payload string) Outcome {
	name, value, ok := strings.Cut(payload, ":")
	if !ok {
		return say(msgStale)
	}
	s, err := c.store.GetActiveSession(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgStale)
	}
	if err != nil {
		return c.fail(chatID, "load session", err)
	}

	step := domain.Step(name)
	if step != s.CurrentStep() {
		return c.stale(s)
	}
	if step != domain.StepLocation {
		return c.apply(ctx, &s, step, value, "")
	}

	id, err := domain.CoerceInt64(value)
	if err != nil {
		return c.stale(s)
	}
	loc, err := c.store.GetLocation(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.stale(s)
	}
	if err != nil {
		return c.fail(chatID, "get location", err)
	}
	return c.apply(ctx, &s, step, value, loc.Caption)
}

// location resolves the city text; several candidates without an exact
// match produce a choice keyboard and leave the session where it is.
func (c *Conversation) location(ctx context.Context, s *domain.Session, text string) Outcome {
	locs, err := c.resolver.Resolve(ctx, text)
	if err != nil {
		return c.fail(s.ChatID, "resolve location", err)
	}
	if len(locs) == 0 {
		return Outcome{
			Replies:    []Reply{{Text: msgNotFoundCity}, c.ask(*s, domain.StepLocation)},
			AwaitInput: true,
		}
	}
	if loc, ok := Pick(text, locs); ok {
		return c.apply(ctx, s, domain.StepLocation, strconv.FormatInt(loc.DestinationID, 10), loc.Caption)
	}

	n := min(len(locs), maxChoices)
	choices := make([]Choice, 0, n)
	for _, l := range locs[:n] {
		choices = append(choices, Choice{
			Label:   truncate(l.Caption, maxLabel),
			Payload: fmt.Sprintf("%s:%d", domain.StepLocation, l.DestinationID),
		})
	}
	return Outcome{Replies: []Reply{{Text: msgClarify, Choices: choices}}, AwaitInput: true}
}

func (c *Conversation) apply(ctx context.Context, s *domain.Session, step domain.Step, raw, caption string) Outcome {
	l := log.With().Int64("chat_id", s.ChatID).Int64("session_id", s.ID).Str("step", string(step)).Logger()

	if err := c.machine.SetAttribute(s, step, raw); err != nil {
		if errors.Is(err, domain.ErrInvalidValue) || errors.Is(err, domain.ErrInvariant) {
			l.Debug().Err(err).Msg("value rejected")
			return Outcome{
				Replies:    []Reply{{Text: rejection(step, c.machine.Limits())}, c.ask(*s, step)},
				AwaitInput: true,
			}
		}
		l.Warn().Err(err).Msg("attribute refused")
		return c.stale(*s)
	}

	if err := c.store.UpdateSession(ctx, s, step); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			l.Warn().Err(err).Msg("session update lost a race")
			return Outcome{Replies: []Reply{{Text: msgConflict}}, AwaitInput: true}
		}
		return c.fail(s.ChatID, "update session", err)
	}

	replies := []Reply{{Text: confirmation(step, *s, caption, c.cfg.Currency)}}
	next := s.CurrentStep()
	if next == domain.StepComplete {
		out := c.finish(ctx, s)
		out.Replies = append(replies, out.Replies...)
		return out
	}
	return Outcome{Replies: append(replies, c.ask(*s, next)), AwaitInput: true}
}

// finish runs the search for a fully answered session, stores what was
// found and archives the session. It is safe to repeat after a failure.
func (c *Conversation) finish(ctx context.Context, s *domain.Session) Outcome {
	results := c.search.Search(ctx, *s)
	for _, r := range results {
		if err := c.store.AddHotel(ctx, r.Hotel); err != nil {
			return c.fail(s.ChatID, "add hotel", err)
		}
		if err := c.store.AddSearchResult(ctx, r); err != nil {
			return c.fail(s.ChatID, "add search result", err)
		}
	}

	var photos map[int64][]string
	if s.PhotosNum != nil && *s.PhotosNum > 0 && len(results) > 0 {
		photos = c.photos.Decorate(ctx, results, *s.PhotosNum)
	}

	if err := c.store.CompleteSession(ctx, s); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Warn().Err(err).Int64("chat_id", s.ChatID).Int64("session_id", s.ID).Msg("session finished by another turn")
			return say(msgAlreadyAnswered)
		}
		return c.fail(s.ChatID, "complete session", err)
	}
	observability.ObserveSession(string(s.Command), "completed")
	log.Info().Int64("chat_id", s.ChatID).Int64("session_id", s.ID).Int("found", len(results)).Msg("session completed")

	if len(results) == 0 {
		return say(msgNoOffers)
	}
	replies := make([]Reply, 0, len(results)+1)
	replies = append(replies, Reply{Text: fmt.Sprintf(msgFound, len(results))})
	for _, r := range results {
		replies = append(replies, Reply{
			Text:    hotelCard(r, c.cfg.Currency),
			Photos:  photos[r.Hotel.ID],
			Choices: []Choice{{Label: msgBook, URL: r.URL}},
		})
	}
	return Outcome{Replies: replies}
}

func (c *Conversation) history(ctx context.Context, chatID int64) Outcome {
	sessions, err := c.store.ListCompletedSessions(ctx, chatID, c.cfg.HistoryLimit)
	if err != nil {
		return c.fail(chatID, "list sessions", err)
	}
	if len(sessions) == 0 {
		return say(msgHistoryEmpty)
	}

	replies := []Reply{{Text: msgHistoryHeader}}
	for _, s := range sessions {
		caption := ""
		if s.LocationID != nil {
			caption = fmt.Sprintf("#%d", *s.LocationID)
			loc, err := c.store.GetLocation(ctx, *s.LocationID)
			switch {
			case err == nil:
				caption = loc.Caption
			case !errors.Is(err, domain.ErrNotFound):
				return c.fail(chatID, "get location", err)
			}
		}
		results, err := c.store.ListSearchResults(ctx, s.ID)
		if err != nil {
			return c.fail(chatID, "list results", err)
		}
		replies = append(replies, Reply{Text: historyEntry(s, caption, results, c.cfg.Currency)})
	}
	return Outcome{Replies: replies}
}

func (c *Conversation) cancel(ctx context.Context, chatID int64) Outcome {
	s, err := c.store.GetActiveSession(ctx, chatID)
	if errors.Is(err, domain.ErrNotFound) {
		return say(msgNothingToCancel)
	}
	if err != nil {
		return c.fail(chatID, "load session", err)
	}
	if err := c.store.CancelSession(ctx, chatID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return say(msgNothingToCancel)
		}
		return c.fail(chatID, "cancel session", err)
	}
	observability.ObserveSession(string(s.Command), "cancelled")
	return say(msgCancelled)
}

// ask builds the question for step, with a calendar or keyboard where one fits.
func (c *Conversation) ask(s domain.Session, step domain.Step) Reply {
	lim := c.machine.Limits()
	r := Reply{Text: prompt(step, lim)}
	switch step {
	case domain.StepCheckIn:
		r.Calendar = &Calendar{Step: step, MinDate: c.machine.Today().Format(domain.DateLayout)}
	case domain.StepCheckOut:
		minDate := c.machine.Today().AddDate(0, 0, 1)
		if s.CheckIn != nil {
			minDate = s.CheckIn.AddDate(0, 0, 1)
		}
		r.Calendar = &Calendar{Step: step, MinDate: minDate.Format(domain.DateLayout)}
	case domain.StepResultsNum:
		r.Choices = countChoices(step, 1, lim.MaxResults)
	case domain.StepPhotosNum:
		r.Choices = countChoices(step, 0, lim.MaxPhotos)
	}
	return r
}

func (c *Conversation) stale(s domain.Session) Outcome {
	step := s.CurrentStep()
	if step == domain.StepComplete {
		return say(msgStale)
	}
	return Outcome{Replies: []Reply{{Text: msgStale}, c.ask(s, step)}, AwaitInput: true}
}

func (c *Conversation) fail(chatID int64, op string, err error) Outcome {
	log.Error().Err(err).Int64("chat_id", chatID).Str("op", op).Msg("conversation turn failed")
	return Outcome{Replies: []Reply{{Text: msgFailure}}, AwaitInput: true}
}

func countChoices(step domain.Step, from, to int) []Choice {
	out := make([]Choice, 0, to-from+1)
	for i := from; i <= to; i++ {
		n := strconv.Itoa(i)
		out = append(out, Choice{Label: n, Payload: string(step) + ":" + n})
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
