package processors

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/idlehelper/bot/idlehelper/database/repositories"
	"github.com/idlehelper/bot/idlehelper/gamedata"
	"github.com/idlehelper/bot/idlehelper/pipeline"
)

var (
	workersCommand = command("workers", "worker stats")
	hireCommand    = command("hire", "worker hire")
	lootboxCommand = command("open", "lootbox open")
	requestCommand = command("request", "worker request")

	workerLevelRe    = regexp.MustCompile(`level:?\s*\**\s*(\d+)`)
	workerAmountRe   = regexp.MustCompile(`amount:?\s*\**\s*([\d,]+)`)
	workerRequiredRe = regexp.MustCompile(`\(\s*([\d,]+)\s*/\s*([\d,]+)\s*\)`)
	hiredRe          = regexp.MustCompile(`hired an? \*\*([a-z]+)\*\* worker`)
	lootboxWorkerRe  = regexp.MustCompile(`\+\s*([\d,]+)\s+([a-z]+)\s+workers?`)
	requestedRe      = regexp.MustCompile(`\*\*([a-z]+)\*\*\s+worker`)
)

// workerIn returns the known worker whose name appears in folded text.
func workerIn(data *gamedata.Data, folded string) (gamedata.Worker, bool) {
	for _, w := range data.Workers {
		if strings.Contains(folded, w.Name) {
			return w, true
		}
	}
	return gamedata.Worker{}, false
}

// addWorkers records hired workers and tracks them per type.
func (d *Deps) addWorkers(ctx context.Context, user *models.User, msg *pipeline.ParsedMessage, name string, amount int) error {
	if err := d.Store.Workers.AddAmount(ctx, user.UserID, name, amount); err != nil {
		return err
	}
	return d.track(ctx, user, msg, repositories.TrackingWorkerPrefix+name, int64(amount))
}

type workerStatsProcessor struct{ *Deps }

func (p *workerStatsProcessor) Name() string { return "worker-stats" }

func (p *workerStatsProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("workers") {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, workersCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	touched := false
	for _, field := range msg.AllFields() {
		w, ok := workerIn(p.Data, pipeline.Fold(field.Name))
		if !ok {
			continue
		}
		value := pipeline.Fold(field.Value)
		levelMatch := workerLevelRe.FindStringSubmatch(value)
		if levelMatch == nil {
			continue
		}
		level, _ := strconv.Atoi(levelMatch[1])
		worker := &models.UserWorker{UserID: user.UserID, WorkerName: w.Name, WorkerLevel: level}
		if match := workerAmountRe.FindStringSubmatch(value); match != nil {
			n, _ := parseNumber(match[1])
			worker.WorkerAmount = int(n)
		}
		if err = p.Store.Workers.Upsert(ctx, worker); err != nil {
			return touched, err
		}
		touched = true

		if match := workerRequiredRe.FindStringSubmatch(value); match != nil {
			required, _ := parseNumber(match[2])
			if required > 0 {
				if err = p.Store.Workers.LearnLevel(ctx, level+1, int(required)); err != nil {
					return touched, err
				}
			}
		}
	}
	return touched, nil
}

type workerRollProcessor struct{ *Deps }

func (p *workerRollProcessor) Name() string { return "worker-roll" }

func (p *workerRollProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	match := hiredRe.FindStringSubmatch(msg.Content.Folded)
	if match == nil {
		match = hiredRe.FindStringSubmatch(msg.Description.Folded)
	}
	if match == nil {
		return false, nil
	}
	w, ok := p.Data.Worker(match[1])
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, hireCommand))
	if err != nil {
		return false, err
	}
	msg.User = user
	return true, p.addWorkers(ctx, user, msg, w.Name, 1)
}

type lootboxProcessor struct{ *Deps }

func (p *lootboxProcessor) Name() string { return "open-lootbox" }

func (p *lootboxProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.IsEvent("lootbox") {
		return false, nil
	}
	text := strings.ReplaceAll(msg.EmbedText(), "*", "")
	matches := lootboxWorkerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, playerQuery(msg, lootboxCommand))
	if err != nil {
		return false, err
	}
	msg.User = user

	touched := false
	for _, match := range matches {
		amount, ok := parseNumber(match[1])
		if !ok || amount <= 0 {
			continue
		}
		w, ok := p.Data.Worker(match[2])
		if !ok {
			continue
		}
		if err = p.addWorkers(ctx, user, msg, w.Name, int(amount)); err != nil {
			return touched, err
		}
		touched = true
	}
	return touched, nil
}

type requestProcessor struct{ *Deps }

func (p *requestProcessor) Name() string { return "request" }

func (p *requestProcessor) Process(ctx context.Context, msg *pipeline.ParsedMessage) (bool, error) {
	if !msg.Content.Contains("request has been accepted") {
		return false, nil
	}
	match := requestedRe.FindStringSubmatch(msg.Content.Folded)
	if match == nil {
		return false, nil
	}
	w, ok := p.Data.Worker(match[1])
	if !ok {
		return false, nil
	}
	user, err := p.Resolver.User(ctx, msg, pipeline.UserQuery{Command: requestCommand})
	if err != nil {
		return false, err
	}
	msg.User = user
	return true, p.addWorkers(ctx, user, msg, w.Name, 1)
}
