package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/idlehelper/bot/idlehelper/database/models"
	"github.com/uptrace/bun"
)

// ClanUpdate describes a partial clan update. Nil members leave the roster untouched.
type ClanUpdate struct {
	Name     string
	LeaderID int64
	Members  []int64
	Fields   map[string]interface{}
}

type ClanRepository interface {
	Insert(ctx context.Context, name string, leaderID int64, members []int64) (*models.Clan, error)
	GetByName(ctx context.Context, name string) (*models.Clan, error)
	GetByMemberID(ctx context.Context, userID int64) (*models.Clan, error)
	GetByLeaderID(ctx context.Context, leaderID int64) (*models.Clan, error)
	Update(ctx context.Context, nameOld string, upd ClanUpdate) (*models.Clan, error)
	Delete(ctx context.Context, name string) error
	// Replace deletes the clan oldName and stores the roster of name in one transaction.
	// created reports whether name had to be inserted.
	Replace(ctx context.Context, oldName, name string, leaderID int64, members []int64) (clan *models.Clan, created bool, err error)
	// AddContribution adds seals for a member and returns the clan totals before and after.
	AddContribution(ctx context.Context, name string, userID int64, seals int) (before, after int, err error)
	ResetContributions(ctx context.Context, name string) error
	// ResetAllContributions zeroes every member's seals at the weekly reset.
	ResetAllContributions(ctx context.Context) (int64, error)
}

type clanRepository struct {
	*BaseRepository
}

func NewClanRepository(db *bun.DB) ClanRepository {
	return &clanRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *clanRepository) Insert(ctx context.Context, name string, leaderID int64, members []int64) (*models.Clan, error) {
	if len(members) > config.MaxClanMembers {
		return nil, fmt.Errorf("clan %s has %d members, maximum is %d", name, len(members), config.MaxClanMembers)
	}

	clan := models.NewClan(name, leaderID)
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		return insertClan(ctx, tx, clan, members)
	})
	if err != nil {
		return nil, r.HandleErrorWithID("insert", "clan", name, err)
	}
	return clan, nil
}

func insertClan(ctx context.Context, tx bun.Tx, clan *models.Clan, members []int64) error {
	exists, err := tx.NewSelect().Model((*models.Clan)(nil)).Where("clan_name = ?", clan.ClanName).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrRecordExists
	}
	leaderTaken, err := tx.NewSelect().Model((*models.Clan)(nil)).Where("leader_id = ?", clan.LeaderID).Exists(ctx)
	if err != nil {
		return err
	}
	if leaderTaken {
		return &ConflictError{Entity: "clan", Field: "leader_id", Value: clan.LeaderID}
	}
	if _, err = tx.NewInsert().Model(clan).Exec(ctx); err != nil {
		return err
	}
	clan.Members, err = reconcileMembers(ctx, tx, clan.ClanName, nil, members)
	return err
}

func (r *clanRepository) GetByName(ctx context.Context, name string) (*models.Clan, error) {
	return r.getWhere(ctx, name, "clan_name = ?", name)
}

func (r *clanRepository) GetByLeaderID(ctx context.Context, leaderID int64) (*models.Clan, error) {
	return r.getWhere(ctx, leaderID, "leader_id = ?", leaderID)
}

func (r *clanRepository) GetByMemberID(ctx context.Context, userID int64) (*models.Clan, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var member models.ClanMember
	err := r.db.NewSelect().Model(&member).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get_by_member", "clan", userID, err)
	}
	return r.GetByName(ctx, member.ClanName)
}

func (r *clanRepository) getWhere(ctx context.Context, id interface{}, where string, args ...interface{}) (*models.Clan, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	clan := new(models.Clan)
	if err := r.db.NewSelect().Model(clan).Where(where, args...).Scan(ctx); err != nil {
		return nil, r.HandleErrorWithID("get", "clan", id, err)
	}
	members, err := loadMembers(ctx, r.db, clan.ClanName)
	if err != nil {
		return nil, r.HandleErrorWithID("get_members", "clan", id, err)
	}
	clan.Members = members
	return clan, nil
}

func loadMembers(ctx context.Context, db bun.IDB, name string) ([]models.ClanMember, error) {
	var members []models.ClanMember
	err := db.NewSelect().
		Model(&members).
		Where("clan_name = ?", name).
		Order("position ASC").
		Scan(ctx)
	return members, err
}

// Update applies a rename, a leader change, a roster reconcile and plain column
// updates in one transaction.
func (r *clanRepository) Update(ctx context.Context, nameOld string, upd ClanUpdate) (*models.Clan, error) {
	if upd.Name == "" && upd.LeaderID == 0 && upd.Members == nil && len(upd.Fields) == 0 {
		return nil, ErrNoArguments
	}
	if len(upd.Members) > config.MaxClanMembers {
		return nil, fmt.Errorf("clan %s has %d members, maximum is %d", nameOld, len(upd.Members), config.MaxClanMembers)
	}

	var name string
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		name, err = r.updateClan(ctx, tx, nameOld, upd)
		return err
	})
	if err != nil {
		return nil, r.HandleErrorWithID("update", "clan", nameOld, err)
	}
	return r.GetByName(ctx, name)
}

// updateClan applies upd inside tx and returns the clan's name afterwards.
func (r *clanRepository) updateClan(ctx context.Context, tx bun.Tx, nameOld string, upd ClanUpdate) (string, error) {
	var current models.Clan
	if err := tx.NewSelect().Model(&current).Where("clan_name = ?", nameOld).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &NotFoundError{Entity: "clan", ID: nameOld}
		}
		return "", err
	}

	if upd.LeaderID != 0 && upd.LeaderID != current.LeaderID {
		taken, err := tx.NewSelect().Model((*models.Clan)(nil)).
			Where("leader_id = ?", upd.LeaderID).
			Where("clan_name != ?", nameOld).
			Exists(ctx)
		if err != nil {
			return "", err
		}
		if taken {
			return "", &ConflictError{Entity: "clan", Field: "leader_id", Value: upd.LeaderID}
		}
		if _, err = tx.NewUpdate().Model((*models.Clan)(nil)).
			Set("leader_id = ?", upd.LeaderID).
			Where("clan_name = ?", nameOld).
			Exec(ctx); err != nil {
			return "", err
		}
	}

	name := nameOld
	if upd.Name != "" && upd.Name != nameOld {
		if err := renameClan(ctx, tx, nameOld, upd.Name); err != nil {
			return "", err
		}
		name = upd.Name
	}

	if len(upd.Fields) > 0 {
		q, err := r.updateColumns(tx, (*models.Clan)(nil), upd.Fields)
		if err != nil {
			return "", err
		}
		if _, err = q.Where("clan_name = ?", name).Exec(ctx); err != nil {
			return "", err
		}
	}

	if upd.Members != nil {
		existing, err := loadMembers(ctx, tx, name)
		if err != nil {
			return "", err
		}
		if _, err = reconcileMembers(ctx, tx, name, existing, upd.Members); err != nil {
			return "", err
		}
	}
	return name, nil
}

func renameClan(ctx context.Context, tx bun.Tx, from, to string) error {
	exists, err := tx.NewSelect().Model((*models.Clan)(nil)).Where("clan_name = ?", to).Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return &ConflictError{Entity: "clan", Field: "clan_name", Value: to}
	}
	for _, model := range []interface{}{(*models.Clan)(nil), (*models.ClanMember)(nil), (*models.ClanReminder)(nil)} {
		if _, err = tx.NewUpdate().Model(model).
			Set("clan_name = ?", to).
			Where("clan_name = ?", from).
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// reconcileMembers makes the stored roster equal wanted: inserts new members,
// updates positions of existing ones and deletes missing ones.
func reconcileMembers(ctx context.Context, tx bun.Tx, name string, existing []models.ClanMember, wanted []int64) ([]models.ClanMember, error) {
	byID := make(map[int64]models.ClanMember, len(existing))
	for _, m := range existing {
		byID[m.UserID] = m
	}

	result := make([]models.ClanMember, 0, len(wanted))
	seen := make(map[int64]bool, len(wanted))
	for pos, userID := range wanted {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		member, ok := byID[userID]
		if ok {
			member.Position = pos
			if _, err := tx.NewUpdate().Model(&member).WherePK().Column("position").Exec(ctx); err != nil {
				return nil, err
			}
		} else {
			member = models.ClanMember{ClanName: name, UserID: userID, Position: pos}
			// a user can only be in one clan
			if _, err := tx.NewDelete().Model((*models.ClanMember)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
				return nil, err
			}
			if _, err := tx.NewInsert().Model(&member).Exec(ctx); err != nil {
				return nil, err
			}
		}
		result = append(result, member)
	}

	var stale []int64
	for _, m := range existing {
		if !seen[m.UserID] {
			stale = append(stale, m.UserID)
		}
	}
	if len(stale) > 0 {
		if _, err := tx.NewDelete().Model((*models.ClanMember)(nil)).
			Where("clan_name = ?", name).
			Where("user_id IN (?)", bun.In(stale)).
			Exec(ctx); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *clanRepository) Delete(ctx context.Context, name string) error {
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		return deleteClan(ctx, tx, name)
	})
	return r.HandleErrorWithID("delete", "clan", name, err)
}

func deleteClan(ctx context.Context, tx bun.Tx, name string) error {
	for _, model := range []interface{}{(*models.ClanMember)(nil), (*models.ClanReminder)(nil), (*models.Clan)(nil)} {
		if _, err := tx.NewDelete().Model(model).Where("clan_name = ?", name).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *clanRepository) Replace(ctx context.Context, oldName, name string, leaderID int64, members []int64) (*models.Clan, bool, error) {
	if len(members) > config.MaxClanMembers {
		return nil, false, fmt.Errorf("clan %s has %d members, maximum is %d", name, len(members), config.MaxClanMembers)
	}

	created := false
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := deleteClan(ctx, tx, oldName); err != nil {
			return err
		}
		exists, err := tx.NewSelect().Model((*models.Clan)(nil)).Where("clan_name = ?", name).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			created = true
			return insertClan(ctx, tx, models.NewClan(name, leaderID), members)
		}
		_, err = r.updateClan(ctx, tx, name, ClanUpdate{LeaderID: leaderID, Members: members})
		return err
	})
	if err != nil {
		return nil, false, r.HandleErrorWithID("replace", "clan", oldName, err)
	}
	clan, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return clan, created, nil
}

func (r *clanRepository) AddContribution(ctx context.Context, name string, userID int64, seals int) (int, int, error) {
	var before int
	err := r.Transaction(ctx, func(ctx context.Context, tx bun.Tx) error {
		total, err := sealsTotal(ctx, tx, name)
		if err != nil {
			return err
		}
		before = total

		res, err := tx.NewUpdate().Model((*models.ClanMember)(nil)).
			Set("guild_seals_contributed = guild_seals_contributed + ?", seals).
			Where("clan_name = ?", name).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &NotFoundError{Entity: "clan member", ID: userID}
		}
		return nil
	})
	if err != nil {
		return 0, 0, r.HandleErrorWithID("add_contribution", "clan", name, err)
	}
	return before, before + seals, nil
}

func sealsTotal(ctx context.Context, db bun.IDB, name string) (int, error) {
	var total sql.NullInt64
	err := db.NewSelect().
		Model((*models.ClanMember)(nil)).
		ColumnExpr("SUM(guild_seals_contributed)").
		Where("clan_name = ?", name).
		Scan(ctx, &total)
	return int(total.Int64), err
}

func (r *clanRepository) ResetContributions(ctx context.Context, name string) error {
	_, err := r.db.NewUpdate().Model((*models.ClanMember)(nil)).
		Set("guild_seals_contributed = 0").
		Where("clan_name = ?", name).
		Exec(ctx)
	return r.HandleErrorWithID("reset_contributions", "clan", name, err)
}

func (r *clanRepository) ResetAllContributions(ctx context.Context) (int64, error) {
	res, err := r.db.NewUpdate().Model((*models.ClanMember)(nil)).
		Set("guild_seals_contributed = 0").
		Where("guild_seals_contributed != 0").
		Exec(ctx)
	if err != nil {
		return 0, r.HandleError("reset_all_contributions", "clan", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
