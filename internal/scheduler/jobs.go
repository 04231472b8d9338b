package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oguzcanoz/halisaha/internal/api/stats"
	"github.com/oguzcanoz/halisaha/internal/config"
	appdb "github.com/oguzcanoz/halisaha/internal/db"
	dbq "github.com/oguzcanoz/halisaha/internal/db/queries"
	"github.com/oguzcanoz/halisaha/internal/email"
	"github.com/oguzcanoz/halisaha/internal/matches"
	"github.com/oguzcanoz/halisaha/internal/models"
)

const (
	defaultReminderCron = "0 * * * *"  // hourly
	defaultStatsCron    = "30 3 * * *" // nightly, off-peak

	reminderWindow = 24 * time.Hour
	jobTimeout     = time.Minute
)

// JobDeps carries what the background jobs need from the running server.
type JobDeps struct {
	DB    *appdb.DB
	Email email.Sender
}

// remindedMatches tracks matches already reminded about, so the hourly job
// does not re-mail the same roster. In-memory on purpose: a restart re-sends
// at worst one extra reminder.
var remindedMatches sync.Map

// RegisterJobs wires the reminder and statistics jobs into the singleton
// scheduler. Init must have been called first.
func RegisterJobs(cfg config.SchedulerConfig, deps JobDeps) error {
	reminderCron := cfg.ReminderCron
	if reminderCron == "" {
		reminderCron = defaultReminderCron
	}
	statsCron := cfg.StatsCron
	if statsCron == "" {
		statsCron = defaultStatsCron
	}

	if _, err := AddJob("match-reminders", reminderCron, func() {
		runMatchReminders(deps)
	}); err != nil {
		return err
	}

	if _, err := AddJob("stats-refresh", statsCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := stats.RefreshAll(ctx); err != nil {
			log.Error().Err(err).Msg("Statistics refresh job failed")
		}
	}); err != nil {
		return err
	}
	return nil
}

// runMatchReminders mails every participant of a match scheduled within the
// next day, once per match.
func runMatchReminders(deps JobDeps) {
	if deps.Email == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	rows, err := deps.DB.Queries.ListMatches(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Reminder job failed to list matches")
		return
	}

	now := time.Now()
	for _, row := range rows {
		at, ok := matches.ScheduledAt(models.MatchFromDB(row))
		if !ok || at.Before(now) || at.Sub(now) > reminderWindow {
			continue
		}
		if _, seen := remindedMatches.LoadOrStore(row.ID, struct{}{}); seen {
			continue
		}
		remindRoster(ctx, deps, row)
	}
}

func remindRoster(ctx context.Context, deps JobDeps, match dbq.Match) {
	logger := log.With().Str("match_id", match.ID).Logger()

	parts, err := deps.DB.Queries.ListParticipantsByMatch(ctx, match.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Reminder job failed to list participants")
		return
	}

	details := email.MatchDetails{
		Title:    match.Title.String,
		Date:     match.MatchDate.String,
		Time:     match.MatchTime.String,
		Location: match.Location.String,
	}
	msg := email.BuildMatchReminder(details)

	sent := 0
	for _, p := range parts {
		// Only players whose name maps to a registered profile have an
		// email address we can reach.
		profile, err := deps.DB.Queries.GetProfileByUsername(ctx, p.ParticipantName)
		if err != nil {
			continue
		}
		user, err := deps.DB.Queries.GetUserByID(ctx, profile.ID)
		if err != nil {
			continue
		}
		email.SendAsync(deps.Email, user.Email, msg, &logger)
		sent++
	}
	logger.Info().Int("recipients", sent).Msg("Match reminders queued")
}
