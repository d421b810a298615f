// Package reminders schedules and delivers reminders.
package reminders

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/transport"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ScheduleInterval time.Duration
	GCInterval       time.Duration
	DueWindow        time.Duration
	GCHorizon        time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		ScheduleInterval: config.ScheduleInterval,
		GCInterval:       config.GCInterval,
		DueWindow:        config.DueWindow,
		GCHorizon:        config.GCHorizon,
		Now:              time.Now,
	}
}

type commandKind int

const (
	cmdSchedule commandKind = iota
	cmdCancel
	cmdDone
	cmdCount
)

type command struct {
	kind     commandKind
	taskName string
	token    uuid.UUID
	user     *models.UserReminder
	clan     *models.ClanReminder
	reply    chan int
}

type task struct {
	token  uuid.UUID
	cancel context.CancelFunc
}

// Engine owns the delivery tasks of due reminders. The task map is only touched by
// the Run goroutine; everything else talks to it through commands.
type Engine struct {
	store     *repositories.Store
	transport transport.Transport
	renderer  *Renderer
	opts      Options

	commands chan command
	stopped  chan struct{}
	stopOnce sync.Once
	tasks    map[string]task
	wg       sync.WaitGroup
}

func NewEngine(store *repositories.Store, tr transport.Transport, renderer *Renderer, opts Options) *Engine {
	def := DefaultOptions()
	if opts.ScheduleInterval <= 0 {
		opts.ScheduleInterval = def.ScheduleInterval
	}
	if opts.GCInterval <= 0 {
		opts.GCInterval = def.GCInterval
	}
	if opts.DueWindow <= 0 {
		opts.DueWindow = def.DueWindow
	}
	if opts.GCHorizon <= 0 {
		opts.GCHorizon = def.GCHorizon
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Engine{
		store:     store,
		transport: tr,
		renderer:  renderer,
		opts:      opts,
		commands:  make(chan command, 256),
		stopped:   make(chan struct{}),
		tasks:     make(map[string]task),
	}
}

func (e *Engine) now() time.Time {
	return e.opts.Now()
}

// Run drives the task owner, the schedule loop and the GC loop until ctx is done,
// then waits for running deliveries to exit.
func (e *Engine) Run(ctx context.Context) error {
	if n, err := e.store.Reminders.ResetTriggered(ctx, e.now()); err != nil {
		slog.Error("Failed to reset triggered reminders",
			slog.String("type", "reminder"),
			slog.Any("error", err))
	} else if n > 0 {
		slog.Info("Rescheduling reminders from previous run",
			slog.String("type", "reminder"),
			slog.Int64("count", n))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.own(ctx)
		return nil
	})
	g.Go(func() error {
		e.loop(ctx, e.opts.ScheduleInterval, e.schedule)
		return nil
	})
	g.Go(func() error {
		e.loop(ctx, e.opts.GCInterval, e.collect)
		return nil
	})
	err := g.Wait()
	e.wg.Wait()
	return err
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) own(ctx context.Context) {
	defer func() {
		e.stopOnce.Do(func() { close(e.stopped) })
		for _, t := range e.tasks {
			t.cancel()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.commands:
			e.handle(ctx, cmd)
		}
	}
}

func (e *Engine) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdCancel:
		if t, ok := e.tasks[cmd.taskName]; ok {
			t.cancel()
			delete(e.tasks, cmd.taskName)
		}
	case cmdSchedule:
		if t, ok := e.tasks[cmd.taskName]; ok {
			t.cancel()
		}
		taskCtx, cancel := context.WithCancel(ctx)
		token := uuid.New()
		e.tasks[cmd.taskName] = task{token: token, cancel: cancel}
		e.wg.Add(1)
		go e.run(taskCtx, cmd, token)
	case cmdDone:
		if t, ok := e.tasks[cmd.taskName]; ok && t.token == cmd.token {
			t.cancel()
			delete(e.tasks, cmd.taskName)
		}
	case cmdCount:
		cmd.reply <- len(e.tasks)
	}
}

func (e *Engine) send(cmd command) {
	select {
	case e.commands <- cmd:
	case <-e.stopped:
	}
}

func (e *Engine) run(ctx context.Context, cmd command, token uuid.UUID) {
	defer e.wg.Done()
	defer e.send(command{kind: cmdDone, taskName: cmd.taskName, token: token})
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Reminder delivery panic",
				slog.String("type", "reminder"),
				slog.String("task", cmd.taskName),
				slog.Any("panic", r))
		}
	}()

	var err error
	if cmd.user != nil {
		err = e.deliverUser(ctx, cmd.user)
	} else {
		err = e.deliverClan(ctx, cmd.clan)
	}
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, transport.ErrForbidden):
	default:
		slog.Error("Failed to deliver reminder",
			slog.String("type", "reminder"),
			slog.String("task", cmd.taskName),
			slog.Any("error", err))
	}
}

// Pending returns the number of running delivery tasks.
func (e *Engine) Pending(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case e.commands <- command{kind: cmdCount, reply: reply}:
	case <-e.stopped:
		return 0, context.Canceled
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *Engine) schedule(ctx context.Context) {
	now := e.now()
	to := now.Add(e.opts.DueWindow)

	users, err := e.store.Reminders.ListDueUserReminders(ctx, now, to)
	if err != nil {
		slog.Error("Failed to list due user reminders", slog.String("type", "reminder"), slog.Any("error", err))
	}
	for i := range users {
		r := &users[i]
		marked, err := e.store.Reminders.MarkUserReminderTriggered(ctx, r)
		if err != nil {
			slog.Error("Failed to mark reminder triggered",
				slog.String("type", "reminder"),
				slog.String("task", r.TaskName()),
				slog.Any("error", err))
			continue
		}
		if !marked {
			slog.Debug("Reminder changed since it was listed",
				slog.String("type", "reminder"),
				slog.String("task", r.TaskName()))
			continue
		}
		e.send(command{kind: cmdSchedule, taskName: r.TaskName(), user: r})
	}

	clans, err := e.store.Reminders.ListDueClanReminders(ctx, now, to)
	if err != nil {
		slog.Error("Failed to list due clan reminders", slog.String("type", "reminder"), slog.Any("error", err))
	}
	for i := range clans {
		r := &clans[i]
		marked, err := e.store.Reminders.MarkClanReminderTriggered(ctx, r)
		if err != nil {
			slog.Error("Failed to mark reminder triggered",
				slog.String("type", "reminder"),
				slog.String("task", r.TaskName()),
				slog.Any("error", err))
			continue
		}
		if !marked {
			slog.Debug("Reminder changed since it was listed",
				slog.String("type", "reminder"),
				slog.String("task", r.TaskName()))
			continue
		}
		e.send(command{kind: cmdSchedule, taskName: r.TaskName(), clan: r})
	}
}

func (e *Engine) collect(ctx context.Context) {
	before := e.now().Add(-e.opts.GCHorizon)

	users, err := e.store.Reminders.ListExpiredUserReminders(ctx, before)
	if err != nil {
		slog.Error("Failed to list expired reminders", slog.String("type", "reminder"), slog.Any("error", err))
	}
	for i := range users {
		if err = e.store.Reminders.DeleteUserReminder(ctx, &users[i]); err != nil {
			slog.Error("Failed to delete expired reminder", slog.String("type", "reminder"), slog.Any("error", err))
		}
	}

	clans, err := e.store.Reminders.ListExpiredClanReminders(ctx, before)
	if err != nil {
		slog.Error("Failed to list expired clan reminders", slog.String("type", "reminder"), slog.Any("error", err))
	}
	for i := range clans {
		if err = e.store.Reminders.DeleteClanReminder(ctx, &clans[i]); err != nil {
			slog.Error("Failed to delete expired clan reminder", slog.String("type", "reminder"), slog.Any("error", err))
		}
	}
	if n := len(users) + len(clans); n > 0 {
		slog.Debug("Deleted expired reminders", slog.String("type", "reminder"), slog.Int("count", n))
	}
}

// UpsertUserReminder stores the reminder, cancels the task of the previous version
// and starts a new one right away when it is already due.
func (e *Engine) UpsertUserReminder(ctx context.Context, p repositories.UserReminderUpsert) (*models.UserReminder, error) {
	if p.Now.IsZero() {
		p.Now = e.now()
	}
	r, err := e.store.Reminders.UpsertUserReminder(ctx, p)
	if err != nil {
		return nil, err
	}
	e.replace(r.TaskName(), r, nil, r.Triggered)
	return r, nil
}

func (e *Engine) UpsertClanReminder(ctx context.Context, clanName string, timeLeft time.Duration, channelID int64, message string) (*models.ClanReminder, error) {
	r, err := e.store.Reminders.UpsertClanReminder(ctx, clanName, timeLeft, channelID, message, e.now())
	if err != nil {
		return nil, err
	}
	e.replace(r.TaskName(), nil, r, r.Triggered)
	return r, nil
}

// RescheduleUserReminder moves an existing reminder to a new end time.
func (e *Engine) RescheduleUserReminder(ctx context.Context, r *models.UserReminder, endTime time.Time) error {
	if err := e.store.Reminders.UpdateUserReminderEndTime(ctx, r, endTime, e.now()); err != nil {
		return err
	}
	e.replace(r.TaskName(), r, nil, r.Triggered)
	return nil
}

func (e *Engine) DeleteUserReminder(ctx context.Context, r *models.UserReminder) error {
	if err := e.store.Reminders.DeleteUserReminder(ctx, r); err != nil {
		return err
	}
	e.send(command{kind: cmdCancel, taskName: r.TaskName()})
	return nil
}

func (e *Engine) DeleteClanReminder(ctx context.Context, r *models.ClanReminder) error {
	if err := e.store.Reminders.DeleteClanReminder(ctx, r); err != nil {
		return err
	}
	e.send(command{kind: cmdCancel, taskName: r.TaskName()})
	return nil
}

func (e *Engine) replace(taskName string, user *models.UserReminder, clan *models.ClanReminder, due bool) {
	e.send(command{kind: cmdCancel, taskName: taskName})
	if due {
		e.send(command{kind: cmdSchedule, taskName: taskName, user: user, clan: clan})
	}
}
