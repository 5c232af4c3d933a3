// Package chat implements the line-oriented command protocol: parsing one
// inbound line into a verb and arguments, and the handlers that carry out
// INTRODUCE, RENAME, USERS, SEND, CANCEL, HISTORY, and REPORT against a
// shared roster.
package chat

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avbezrukov/linechat/config"
	"github.com/avbezrukov/linechat/state"
	"github.com/avbezrukov/linechat/token"
)

// Service owns the chat command handlers. One Service is shared by every
// connection; the Roster it wraps is the only mutable state a handler ever
// touches.
type Service struct {
	cfg    config.Config
	roster *state.Roster
	logger *slog.Logger

	// now is overridden in tests; production always leaves it as time.Now.
	now func() time.Time
}

// NewService builds a Service bound to roster, following this module's
// constructor convention of collaborators plus a *slog.Logger.
func NewService(cfg config.Config, roster *state.Roster, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, roster: roster, logger: logger, now: time.Now}
}

// Dispatch parses line and routes it to the matching handler. Any panic
// inside a handler is recovered here and turned into an "Internal Server
// Error" reply to sess, so one broken request never takes down the
// connection or any other session; unknown verbs are silently ignored, per
// the wire protocol's contract that the client already filters those out
// locally.
func (s *Service) Dispatch(sess *state.Session, line string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("chat handler panic", "peer", sess.Peer(), "recovered", r)
			s.deliver(sess, "Internal Server Error")
		}
	}()

	cmd, ok := parseLine(line)
	if !ok {
		return
	}

	var err error
	switch cmd.verb {
	case "INTRODUCE":
		err = s.handleIntroduce(sess, cmd.args)
	case "RENAME":
		err = s.handleRename(sess, cmd.args)
	case "USERS":
		err = s.handleUsers(sess)
	case "SEND":
		err = s.handleSend(sess, cmd.args)
	case "CANCEL":
		err = s.handleCancel(sess)
	case "HISTORY":
		err = s.handleHistory(sess)
	case "REPORT":
		err = s.handleReport(sess, cmd.args)
	default:
		return
	}

	if err != nil {
		s.deliverError(sess, err)
	}
}

// Join performs the once-per-connection accept sequence: assigning the
// default name, seeding personal history from the room history snapshot,
// and inserting sess into the roster. The connection loop calls this before
// its read loop starts; INTRODUCE only renames an already-joined session.
func (s *Service) Join(sess *state.Session) {
	sess.SetName(s.roster.NextDefaultName())
	sess.SeedPersonalHistory(s.roster.RoomHistorySnapshot())
	s.roster.Add(sess)
}

// Leave tears down sess: cancels every pending delayed send, removes it from
// the roster, scrubs it out of every other session's reporters set so a
// departed user's votes can't keep counting toward a future ban, and
// broadcasts the departure line.
func (s *Service) Leave(sess *state.Session) {
	for _, tok := range sess.DrainDelays() {
		tok.Cancel()
	}

	s.roster.Remove(sess)
	sess.MarkClosed()

	for _, other := range s.roster.All() {
		state.RemoveReporter(other, sess)
	}

	line := withTimestamp(s.now(), fmt.Sprintf("%s left the chat", sess.Name()))
	s.roster.Broadcast(line, nil, s.deliver)
}

func (s *Service) deliver(sess *state.Session, line string) {
	if err := sess.SendRaw(line); err != nil {
		s.logger.Warn("write to session failed", "peer", sess.Peer(), "err", err)
	}
}

// deliverError renders err as the one reply line it represents: a UserError
// is sent to sess verbatim (timestamped unless marked otherwise), anything
// else is logged and masked behind "Internal Server Error".
func (s *Service) deliverError(sess *state.Session, err error) {
	var uerr *UserError
	if errors.As(err, &uerr) {
		line := uerr.Error()
		if !uerr.noTimestamp {
			line = withTimestamp(s.now(), line)
		}
		s.deliver(sess, line)
		return
	}
	s.logger.Error("chat handler error", "peer", sess.Peer(), "err", err)
	s.deliver(sess, "Internal Server Error")
}

// checkName validates a candidate display name against the live roster,
// returning the trimmed name on success. The duplicate check runs against
// every live session including sess itself, so renaming to one's own
// current name is rejected as a collision — preserved as-is rather than
// "fixed", since nothing in the reference behavior special-cases it.
func (s *Service) checkName(sess *state.Session, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", NewUserError("Empty names are restricted")
	case strings.ContainsAny(name, " \t\n\r"):
		return "", NewUserError("Empty spaces are restricted in names")
	case !s.roster.NameAvailable(name):
		return "", NewUserError("Already have user with that name")
	}
	return name, nil
}

// handleIntroduce runs once per connection, immediately after join. An
// invalid supplied name is dropped silently: the session keeps the default
// name it was given at Join, and the client is never told why.
func (s *Service) handleIntroduce(sess *state.Session, args []string) error {
	if len(args) > 0 {
		if newName, err := s.checkName(sess, strings.Join(args, " ")); err == nil {
			old := sess.Name()
			s.roster.Rename(sess, old, newName)
			sess.SetName(newName)
		}
	}

	for _, line := range sess.PersonalHistory() {
		s.deliver(sess, line)
	}

	now := s.now()
	name := sess.Name()
	s.roster.Broadcast(withTimestamp(now, fmt.Sprintf("%s joined chat", name)),
		func(other *state.Session) bool { return other == sess },
		s.deliver)

	s.deliver(sess, withTimestamp(now, fmt.Sprintf("%s, %s", name, s.cfg.GreetingMessage)))
	return nil
}

// handleRename changes sess's own display name, broadcasting the change to
// everyone else and confirming it to sess. The roster index and the
// session's own name field are only updated after the broadcast is
// composed, so nothing else can observe the new name mid-handler.
func (s *Service) handleRename(sess *state.Session, args []string) error {
	requested := ""
	if len(args) > 0 {
		requested = args[0]
	}

	newName, err := s.checkName(sess, requested)
	if err != nil {
		return err
	}

	old := sess.Name()
	now := s.now()

	s.roster.Broadcast(withTimestamp(now, fmt.Sprintf("%s changed name to %s", old, newName)),
		func(other *state.Session) bool { return other == sess },
		s.deliver)
	s.deliver(sess, withTimestamp(now, fmt.Sprintf("Your name was changed to %s", newName)))

	s.roster.Rename(sess, old, newName)
	sess.SetName(newName)
	return nil
}

// handleUsers replies with a system block listing every current display
// name, in join order.
func (s *Service) handleUsers(sess *state.Session) error {
	s.deliver(sess, systemBlock("USERS", s.roster.Names()))
	return nil
}

// handleHistory replies with a system block of sess's own personal history.
func (s *Service) handleHistory(sess *state.Session) error {
	s.deliver(sess, systemBlock("HISTORY", sess.PersonalHistory()))
	return nil
}

// handleCancel pops the most recently scheduled delayed SEND (LIFO) and
// cancels it. There is no way to reach back further than the most recent
// one.
func (s *Service) handleCancel(sess *state.Session) error {
	tok, ok := sess.PopDelay()
	if !ok {
		return NewUserError("You have no delayed messages")
	}
	tok.Cancel()
	s.deliver(sess, withTimestamp(s.now(), "You last delayed message was removed"))
	return nil
}

// handleReport records one user's report against another, applying a ban
// once the report count reaches the configured threshold.
func (s *Service) handleReport(sess *state.Session, args []string) error {
	targetName := ""
	if len(args) > 0 {
		targetName = args[0]
	}

	// Every REPORT error reply (unlike RENAME/SEND validation errors) is sent
	// without a timestamp prefix, matching the reference implementation's
	// _report, which always passes show_time=False.
	target, ok := s.roster.Lookup(targetName)
	if !ok {
		return NewUserErrorNoTimestamp("There is not user with name %s", targetName)
	}
	if target == sess {
		return NewUserErrorNoTimestamp("You can't report yourself")
	}

	now := s.now()
	if target.HasReporter(sess) {
		return NewUserErrorNoTimestamp("%s was already reported by you", targetName)
	}
	if _, banned := target.BanUntil(now); banned {
		return NewUserErrorNoTimestamp("%s is already banned", targetName)
	}

	target.AddReporter(sess)
	count := target.ReportCount()

	s.roster.Broadcast(withTimestamp(now, fmt.Sprintf("User %s was reported by %s. Reports count: %d", targetName, sess.Name(), count)),
		nil, s.deliver)

	if count >= s.cfg.ReportsForBan {
		until := now.Add(s.cfg.BanDuration())
		target.ClearReporters()
		target.Ban(until)
		s.roster.Broadcast(withTimestamp(now, fmt.Sprintf("User %s was banned until %s", targetName, bracket(until))),
			nil, s.deliver)
	}
	return nil
}

// handleSend runs the ban check and, if the send isn't delayed, the rest of
// the SEND pipeline immediately. A delayed send replies with its
// acknowledgement and schedules a timer; the acknowledgement and the
// eventual delivery are the only two replies a delayed SEND ever produces.
func (s *Service) handleSend(sess *state.Session, args []string) error {
	parsed := parseSendArgs(args)

	if until, banned := sess.BanUntil(s.now()); banned {
		return NewUserError("You are banned till %s", bracket(until))
	}

	if parsed.delaySeconds > 0 {
		return s.scheduleDelayedSend(sess, parsed)
	}

	return s.sendOrBan(sess, parsed.recipient, parsed.message)
}

// sendOrBan re-runs SEND's ban gate (step 1) before handing off to sendNow.
// A delayed SEND's eventual firing re-enters SEND with delay=0, which means
// re-running the ban check too, not just the delivery steps — a ban applied
// while the message was waiting must still block it. This is the one path
// shared by handleSend's immediate branch and scheduleDelayedSend's timer
// callback, so neither can skip the check.
func (s *Service) sendOrBan(sess *state.Session, recipient, message string) error {
	if until, banned := sess.BanUntil(s.now()); banned {
		return NewUserError("You are banned till %s", bracket(until))
	}
	return s.sendNow(sess, recipient, message)
}

// scheduleDelayedSend pushes a cancel token onto sess's pending-delays stack
// and arranges for sendOrBan to run again, with the same recipient and
// message, after the requested delay. If CANCEL (or session teardown) wins
// the race and cancels the token first, the timer fires into a no-op.
func (s *Service) scheduleDelayedSend(sess *state.Session, parsed sendArgs) error {
	tok := token.New()
	sess.PushDelay(tok)

	delay := time.Duration(parsed.delaySeconds) * time.Second
	time.AfterFunc(delay, func() {
		sess.RemoveDelay(tok)
		tok.Complete()
		if !tok.IsCompleted() {
			// Cancel won the race: the token is cancelled, not completed.
			return
		}
		if sess.Closed() {
			return
		}
		if err := s.sendOrBan(sess, parsed.recipient, parsed.message); err != nil {
			s.deliverError(sess, err)
		}
	})

	s.deliver(sess, withTimestamp(s.now(), fmt.Sprintf("Your message will be send after %d seconds", parsed.delaySeconds)))
	return nil
}

// sendNow carries out steps 3-6 of SEND: the empty-message and spam checks,
// then either a room broadcast or a private whisper. Both the initial
// immediate SEND and a delayed SEND's eventual firing funnel through here.
func (s *Service) sendNow(sess *state.Session, recipient, message string) error {
	message = strings.TrimSpace(stripMarkup(message))
	if message == "" {
		return NewUserError("Empty messages are restricted")
	}
	message = applyRollEasterEgg(sess.Name(), message)

	now := s.now()
	rejected, windowEnd := sess.IncrementSpamAndCheck(now, s.cfg.MessagesLimitInSpamPeriod, s.cfg.SpamPeriod())
	if rejected {
		return NewUserError("You are spamming to much. Wait until %s", bracket(windowEnd))
	}

	if recipient == "" {
		line := withTimestamp(now, fmt.Sprintf("%s: %s", sess.Name(), message))
		s.roster.Broadcast(line, nil, func(other *state.Session, l string) {
			other.AddToPersonalHistory(l)
			s.deliver(other, l)
		})
		s.roster.AppendRoomHistory(line)
		return nil
	}

	target, ok := s.roster.Lookup(recipient)
	if !ok {
		return NewUserErrorNoTimestamp("There is not user with name %s", recipient)
	}

	line := withTimestamp(now, fmt.Sprintf("%s->%s: %s", sess.Name(), recipient, message))
	sess.AddToPersonalHistory(line)
	s.deliver(sess, line)
	if target != sess {
		target.AddToPersonalHistory(line)
		s.deliver(target, line)
	}
	return nil
}
