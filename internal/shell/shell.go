package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"departure-board/internal/departure"
	"departure-board/internal/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	trainLinePattern   = regexp.MustCompile(`^[A-Z]\d{2}$`)
	destinationPattern = regexp.MustCompile(`^\p{Lu}\p{Ll}*$`)
)

const helpText = `Commands:
  overview                                        all departures after the current time
  add <HH:MM> <line> <id> <destination> [track]   register a departure (line like F12)
  find <id>                                       show one departure
  destinations                                    list destinations served today
  filter <destination>                            departures going to a destination
  track <id> <track>                              assign a track (1-15, -1 to unassign)
  delay <id> <minutes>                            set the delay of a departure
  remove <id>                                     remove a departure
  time <HH:MM>                                    move the station clock forward
  next                                            minutes until the next departure
  iqr                                             interquartile range of departure times
  help                                            this list
  quit                                            leave the console`

type Shell struct {
	session   *Session
	scanner   *bufio.Scanner
	out       io.Writer
	telemetry *departure.TelemetryProvider
}

func NewShell(session *Session, telemetry *departure.TelemetryProvider, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		session:   session,
		scanner:   bufio.NewScanner(in),
		out:       out,
		telemetry: telemetry,
	}
}

// Run reads commands until quit, end of input or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) {
	tracer := s.telemetry.Tracer()
	ctx, span := tracer.Start(ctx, "shell.run",
		trace.WithAttributes(
			attribute.String("session.id", s.session.ID),
			attribute.String("station", s.session.Station),
		))
	defer span.End()

	span.AddEvent("shell_started")
	fmt.Fprintf(s.out, "Welcome to %s train station. The time is %s. Type 'help' for commands.\n",
		s.session.Station, s.session.Now)

	for ctx.Err() == nil {
		if !s.scanner.Scan() {
			break
		}

		input := strings.TrimSpace(s.scanner.Text())
		if input == "" {
			continue
		}

		// Create a new span for each command
		cmdCtx, cmdSpan := tracer.Start(ctx, "shell.process",
			trace.WithAttributes(attribute.String("command.input", input)))

		quit := s.processCommand(cmdCtx, input)
		cmdSpan.End()
		if quit {
			break
		}
	}

	span.AddEvent("shell_ended")
}

func (s *Shell) processCommand(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	logging.Debugf(ctx, "shell command %q", input)

	switch command {
	case "overview":
		s.handleOverview(ctx)
	case "add":
		s.handleAdd(ctx, parts)
	case "find":
		s.handleFind(ctx, parts)
	case "destinations":
		s.handleDestinations(ctx)
	case "filter":
		s.handleFilter(ctx, parts)
	case "track":
		s.handleTrack(ctx, parts)
	case "delay":
		s.handleDelay(ctx, parts)
	case "remove":
		s.handleRemove(ctx, parts)
	case "time":
		s.handleTime(ctx, parts)
	case "next":
		s.handleNext(ctx)
	case "iqr":
		s.handleInterquartileRange(ctx)
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		fmt.Fprintf(s.out, "Thank you for using the %s train station. Hope to see you soon!\n", s.session.Station)
		return true
	default:
		trace.SpanFromContext(ctx).AddEvent("unknown_command", trace.WithAttributes(
			attribute.String("unknown_command", command),
		))
		fmt.Fprintf(s.out, "Unknown command: %s\n", command)
	}
	return false
}

func (s *Shell) handleOverview(ctx context.Context) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.overview")
	defer span.End()

	if _, err := s.session.Register.RemoveBefore(ctx, s.session.Now); err != nil {
		s.fail(ctx, span, err)
		return
	}

	sorted := s.session.Register.Sorted(ctx)
	if len(sorted) == 0 {
		span.AddEvent("board_empty")
		fmt.Fprintln(s.out, "There are no more departures today.")
		return
	}

	span.SetAttributes(attribute.Int("departures.count", len(sorted)))
	fmt.Fprintf(s.out, "Departures from %s after %s:\n", s.session.Station, s.session.Now)
	writeTable(s.out, sorted)
}

func (s *Shell) handleAdd(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.add")
	defer span.End()

	if len(parts) != 5 && len(parts) != 6 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: add <HH:MM> <line> <id> <destination> [track]")
		return
	}

	departureTime, err := departure.ParseClock(parts[1])
	if err != nil {
		s.fail(ctx, span, err)
		return
	}

	line := parts[2]
	if !trainLinePattern.MatchString(line) {
		span.AddEvent("invalid_train_line")
		fmt.Fprintln(s.out, "Invalid train line: use a capital letter followed by two digits, like F12")
		return
	}

	id, ok := s.parseInt(span, parts[3], "train id")
	if !ok {
		return
	}

	destination := departure.DisplayName(parts[4])
	if !destinationPattern.MatchString(destination) {
		span.AddEvent("invalid_destination")
		fmt.Fprintln(s.out, "Invalid destination: use a single word of letters")
		return
	}

	track := departure.UnassignedTrack
	if len(parts) == 6 {
		if track, ok = s.parseInt(span, parts[5], "track"); !ok {
			return
		}
	}

	span.SetAttributes(
		attribute.Int("departure.id", id),
		attribute.String("departure.destination", destination),
	)

	if err := s.session.Register.Add(ctx, departureTime, line, id, destination, 0, track); err != nil {
		s.fail(ctx, span, err)
		return
	}

	span.AddEvent("departure_added")
	if track == departure.UnassignedTrack {
		fmt.Fprintf(s.out, "Departure %d to %s at %s registered without a track.\n", id, destination, departureTime)
		return
	}
	fmt.Fprintf(s.out, "Departure %d to %s at %s registered on track %d.\n", id, destination, departureTime, track)
}

func (s *Shell) handleFind(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.find")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: find <id>")
		return
	}

	id, ok := s.parseInt(span, parts[1], "train id")
	if !ok {
		return
	}

	d, found := s.session.Register.FindByID(ctx, id)
	if !found {
		span.AddEvent("departure_not_found")
		fmt.Fprintf(s.out, "There is no departure with the train ID %d.\n", id)
		return
	}

	writeTable(s.out, []departure.Departure{d})
}

func (s *Shell) handleDestinations(ctx context.Context) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.destinations")
	defer span.End()

	names := s.session.Register.Destinations(ctx)
	if len(names) == 0 {
		fmt.Fprintln(s.out, "There are no departures today.")
		return
	}
	for i, name := range names {
		names[i] = departure.DisplayName(name)
	}
	fmt.Fprintf(s.out, "The trains today are going to: %s\n", strings.Join(names, " | "))
}

func (s *Shell) handleFilter(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.filter")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: filter <destination>")
		return
	}

	destination := parts[1]
	span.SetAttributes(attribute.String("departure.destination", destination))

	exists, err := s.session.Register.DestinationExists(ctx, destination)
	if err != nil {
		s.fail(ctx, span, err)
		return
	}
	if !exists {
		fmt.Fprintf(s.out, "There are no departures going to %s.\n", departure.DisplayName(destination))
		return
	}

	matches, err := s.session.Register.FindByDestination(ctx, destination)
	if err != nil {
		s.fail(ctx, span, err)
		return
	}
	sortByDepartureTime(matches)

	fmt.Fprintf(s.out, "Departures going to %s:\n", departure.DisplayName(destination))
	writeTable(s.out, matches)
}

func (s *Shell) handleTrack(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.track")
	defer span.End()

	if len(parts) != 3 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: track <id> <track>")
		return
	}

	id, ok := s.parseInt(span, parts[1], "train id")
	if !ok {
		return
	}
	track, ok := s.parseInt(span, parts[2], "track")
	if !ok {
		return
	}

	if !s.requireExisting(ctx, span, id) {
		return
	}
	if err := s.session.Register.AssignTrack(ctx, id, track); err != nil {
		s.fail(ctx, span, err)
		return
	}

	if track == departure.UnassignedTrack {
		fmt.Fprintf(s.out, "Departure %d no longer has a track.\n", id)
		return
	}
	fmt.Fprintf(s.out, "Departure %d leaves from track %d.\n", id, track)
}

func (s *Shell) handleDelay(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.delay")
	defer span.End()

	if len(parts) != 3 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: delay <id> <minutes>")
		return
	}

	id, ok := s.parseInt(span, parts[1], "train id")
	if !ok {
		return
	}
	minutes, ok := s.parseInt(span, parts[2], "delay")
	if !ok {
		return
	}

	if !s.requireExisting(ctx, span, id) {
		return
	}
	if err := s.session.Register.AssignDelay(ctx, id, minutes); err != nil {
		s.fail(ctx, span, err)
		return
	}

	d, _ := s.session.Register.FindByID(ctx, id)
	fmt.Fprintf(s.out, "Departure %d is delayed by %d minutes and now leaves at %s.\n", id, minutes, d.DelayedTime())
}

func (s *Shell) handleRemove(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.remove")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: remove <id>")
		return
	}

	id, ok := s.parseInt(span, parts[1], "train id")
	if !ok {
		return
	}
	if !s.requireExisting(ctx, span, id) {
		return
	}
	if err := s.session.Register.RemoveByID(ctx, id); err != nil {
		s.fail(ctx, span, err)
		return
	}
	fmt.Fprintf(s.out, "Departure %d removed.\n", id)
}

func (s *Shell) handleTime(ctx context.Context, parts []string) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.time")
	defer span.End()

	if len(parts) != 2 {
		span.AddEvent("invalid_arguments")
		fmt.Fprintln(s.out, "Usage: time <HH:MM>")
		return
	}

	t, err := departure.ParseClock(parts[1])
	if err != nil {
		s.fail(ctx, span, err)
		return
	}

	removed, err := s.session.AdvanceTo(ctx, t)
	if err != nil {
		s.fail(ctx, span, err)
		return
	}

	span.SetAttributes(attribute.String("session.now", t.String()), attribute.Int("departures.removed", removed))
	fmt.Fprintf(s.out, "The time is now %s.", t)
	if removed > 0 {
		fmt.Fprintf(s.out, " %d departure(s) have left the station.", removed)
	}
	fmt.Fprintln(s.out)
}

func (s *Shell) handleNext(ctx context.Context) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.next")
	defer span.End()

	minutes, err := s.session.Register.MinutesUntilNextDeparture(ctx, s.session.Now)
	if err != nil {
		s.fail(ctx, span, err)
		return
	}
	if minutes < 0 {
		fmt.Fprintln(s.out, "There are no departures today.")
		return
	}
	fmt.Fprintf(s.out, "The next departure leaves in %d minutes.\n", minutes)
}

func (s *Shell) handleInterquartileRange(ctx context.Context) {
	ctx, span := s.telemetry.Tracer().Start(ctx, "shell.iqr")
	defer span.End()

	q1, q3, err := s.session.Register.InterquartileRange(ctx)
	if err != nil {
		s.fail(ctx, span, err)
		return
	}
	fmt.Fprintf(s.out, "Half of today's departures leave between %s and %s.\n", q1, q3)
}

func (s *Shell) requireExisting(ctx context.Context, span trace.Span, id int) bool {
	exists, err := s.session.Register.Exists(ctx, id)
	if err != nil {
		s.fail(ctx, span, err)
		return false
	}
	if !exists {
		span.AddEvent("departure_not_found")
		fmt.Fprintf(s.out, "There is no departure with the train ID %d.\n", id)
		return false
	}
	return true
}

func (s *Shell) parseInt(span trace.Span, value, name string) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		span.RecordError(fmt.Errorf("invalid %s: %s", name, value))
		span.AddEvent("invalid_" + strings.ReplaceAll(name, " ", "_"))
		fmt.Fprintf(s.out, "Invalid %s: %s is not a whole number\n", name, value)
		return 0, false
	}
	return n, true
}

func (s *Shell) fail(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logging.WithContext(ctx).WithError(err).Debug("shell command failed")
	fmt.Fprintf(s.out, "Error: %s\n", err.Error())
}
