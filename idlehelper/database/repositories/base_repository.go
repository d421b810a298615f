package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/idlehelper/bot/idlehelper/config"
	"github.com/uptrace/bun"
)

var (
	// ErrFirstTimeUser is returned when a user has never opted in.
	ErrFirstTimeUser = errors.New("user is not registered")
	ErrNoArguments   = errors.New("no fields to update")
	ErrRecordExists  = errors.New("record already exists")
	ErrUnknownField  = errors.New("unknown field")
)

// BaseRepository provides common repository functionality
type BaseRepository struct {
	db             *bun.DB
	defaultTimeout time.Duration
}

func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{
		db:             db,
		defaultTimeout: config.DefaultQueryTimeout,
	}
}

// RepositoryError represents a repository-level error
type RepositoryError struct {
	Operation string
	Entity    string
	Err       error
}

func (re *RepositoryError) Error() string {
	return fmt.Sprintf("repository error during %s for %s: %v", re.Operation, re.Entity, re.Err)
}

func (re *RepositoryError) Unwrap() error {
	return re.Err
}

// NotFoundError represents an entity not found error
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %v not found", nfe.Entity, nfe.ID)
}

// ConflictError represents a data conflict error
type ConflictError struct {
	Entity string
	Field  string
	Value  interface{}
}

func (ce *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %v already exists", ce.Entity, ce.Field, ce.Value)
}

func (br *BaseRepository) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, br.defaultTimeout)
}

// HandleErrorWithID standardizes error handling with specific ID
func (br *BaseRepository) HandleErrorWithID(operation, entity string, id interface{}, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	var nf *NotFoundError
	var conflict *ConflictError
	if errors.As(err, &nf) || errors.As(err, &conflict) || errors.Is(err, ErrFirstTimeUser) ||
		errors.Is(err, ErrRecordExists) || errors.Is(err, ErrNoArguments) || errors.Is(err, ErrUnknownField) {
		return err
	}
	return &RepositoryError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

func (br *BaseRepository) HandleError(operation, entity string, err error) error {
	return br.HandleErrorWithID(operation, entity, "unknown", err)
}

// Transaction executes a function within a database transaction
func (br *BaseRepository) Transaction(ctx context.Context, fn func(context.Context, bun.Tx) error) error {
	timeoutCtx, cancel := br.WithTimeout(ctx)
	defer cancel()

	return br.db.RunInTx(timeoutCtx, nil, fn)
}

// updateColumns builds an UPDATE for model restricted to known columns.
func (br *BaseRepository) updateColumns(idb bun.IDB, model interface{}, fields map[string]interface{}) (*bun.UpdateQuery, error) {
	if len(fields) == 0 {
		return nil, ErrNoArguments
	}
	table := br.db.Table(reflect.TypeOf(model).Elem())

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := table.FieldMap[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	q := idb.NewUpdate().Model(model)
	for _, name := range names {
		q = q.Set("? = ?", bun.Ident(name), normalizeValue(fields[name]))
	}
	return q, nil
}

// normalizeValue stores all timestamps as UTC with second precision.
func normalizeValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return nil
		}
		return UTC(t)
	}
	return v
}

// UTC truncates t to seconds in UTC. Zero stays zero.
func UTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsRepositoryError(err error) bool {
	var re *RepositoryError
	return errors.As(err, &re)
}

func IsFirstTimeUser(err error) bool {
	return errors.Is(err, ErrFirstTimeUser)
}
