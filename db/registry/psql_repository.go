package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"

	"tixledger/entity"
	"tixledger/metrics"
	"tixledger/pubsub/outbox"
)

// KycService verifies the legitimacy of an organization before it enters
// the directory. Production deployments plug in a real provider; the
// default gateway client auto-approves.
type KycService interface {
	Verify(ctx context.Context, owner string, name string) (bool, error)
}

type Limits struct {
	MaxOrganizations     int
	MaxEventsPerCategory int
}

func DefaultLimits() Limits {
	return Limits{
		MaxOrganizations:     1024,
		MaxEventsPerCategory: 1024,
	}
}

type PostgresRepository struct {
	db     *sqlx.DB
	kyc    KycService
	limits Limits
	now    func() time.Time
}

func NewPostgresRepository(db *sqlx.DB, kyc KycService, limits Limits) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}
	if kyc == nil {
		panic("kyc service is nil")
	}

	return &PostgresRepository{
		db:     db,
		kyc:    kyc,
		limits: limits,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Initialize creates the registry singleton with an empty organization
// directory and an empty events index. A second call fails.
func (r *PostgresRepository) Initialize(ctx context.Context, authority string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO registry (singleton, authority, organization_count)
		VALUES (TRUE, $1, 0)
		ON CONFLICT DO NOTHING
	`, authority)
	if err != nil {
		return fmt.Errorf("could not initialize registry: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return entity.ErrAlreadyInitialized
	}

	log.FromContext(ctx).WithField("authority", authority).Info("Registry initialized")
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context) (entity.Registry, error) {
	var reg entity.Registry
	err := r.db.GetContext(ctx, &reg, `
		SELECT authority, organization_count FROM registry
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Registry{}, entity.ErrNotFound
		}
		return entity.Registry{}, fmt.Errorf("could not get registry: %w", err)
	}

	return reg, nil
}

// RegisterOrganization validates the name and description bounds, asks the
// KYC collaborator for a verdict and appends a directory entry with a fresh
// sequence id. The directory is capacity bounded.
func (r *PostgresRepository) RegisterOrganization(
	ctx context.Context,
	owner string,
	name string,
	description string,
) (info entity.OrganizationInfo, err error) {
	if len(name) > entity.MaxOrganizationNameLen {
		return entity.OrganizationInfo{}, entity.ErrNameTooLong
	}
	if len(description) > entity.MaxOrganizationDescriptionLen {
		return entity.OrganizationInfo{}, entity.ErrDescriptionTooLong
	}

	kycVerified, err := r.kyc.Verify(ctx, owner, name)
	if err != nil {
		return entity.OrganizationInfo{}, fmt.Errorf("could not verify organization: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return entity.OrganizationInfo{}, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	var reg entity.Registry
	err = tx.GetContext(ctx, &reg, `
		SELECT authority, organization_count FROM registry FOR UPDATE
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.OrganizationInfo{}, entity.ErrNotFound
		}
		return entity.OrganizationInfo{}, fmt.Errorf("could not get registry: %w", err)
	}

	if reg.OrganizationCount >= int64(r.limits.MaxOrganizations) {
		return entity.OrganizationInfo{}, entity.ErrRegistryFull
	}

	info = entity.OrganizationInfo{
		ID:          reg.OrganizationCount,
		Name:        name,
		Owner:       owner,
		Description: description,
		KycVerified: kycVerified,
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO organization_directory (id, name, owner, description, kyc_verified)
		VALUES (:id, :name, :owner, :description, :kyc_verified)
	`, info)
	if err != nil {
		return entity.OrganizationInfo{}, fmt.Errorf("could not add organization to directory: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE registry SET organization_count = organization_count + 1
	`)
	if err != nil {
		return entity.OrganizationInfo{}, fmt.Errorf("could not update registry count: %w", err)
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return entity.OrganizationInfo{}, err
	}

	err = eventBus.Publish(ctx, entity.OrganizationRegistered{
		Header:      entity.NewEventHeader(),
		ID:          info.ID,
		Owner:       info.Owner,
		Name:        info.Name,
		KycVerified: info.KycVerified,
	})
	if err != nil {
		return entity.OrganizationInfo{}, fmt.Errorf("could not publish event: %w", err)
	}

	return info, nil
}

func (r *PostgresRepository) Directory(ctx context.Context) ([]entity.OrganizationInfo, error) {
	var infos []entity.OrganizationInfo
	err := r.db.SelectContext(ctx, &infos, `
		SELECT id, name, owner, description, kyc_verified
		FROM organization_directory
		ORDER BY id
	`)
	return infos, err
}

// RegisterEventTx inserts a fresh event id into the Upcoming bucket inside
// the caller's transaction, so event creation and index insertion commit or
// roll back as one unit.
func (r *PostgresRepository) RegisterEventTx(ctx context.Context, tx *sqlx.Tx, eventID string) error {
	var upcoming int
	err := tx.GetContext(ctx, &upcoming, `
		SELECT COUNT(*) FROM event_index WHERE status = $1
	`, entity.EventStatusUpcoming)
	if err != nil {
		return fmt.Errorf("could not count upcoming events: %w", err)
	}

	if upcoming >= r.limits.MaxEventsPerCategory {
		return entity.ErrCategoryFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_index (event_id, status) VALUES ($1, $2)
	`, eventID, entity.EventStatusUpcoming)
	if err != nil {
		return fmt.Errorf("could not add event to index: %w", err)
	}

	return nil
}

// UpdateEventStatus moves an event id between buckets on authority request.
// Manual transitions are authority-trusted and may go backward; a backward
// move is logged. The event row's status column is updated in the same
// transaction to keep both representations in agreement.
func (r *PostgresRepository) UpdateEventStatus(
	ctx context.Context,
	authority string,
	eventID string,
	newStatus entity.EventStatus,
) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	if err = r.authorizeTx(ctx, tx, authority); err != nil {
		return err
	}

	oldStatus, err := r.MoveEventTx(ctx, tx, eventID, newStatus)
	if err != nil {
		return err
	}

	if oldStatus == newStatus {
		return nil
	}

	if backward(oldStatus, newStatus) {
		log.FromContext(ctx).
			WithField("event_id", eventID).
			WithField("old_status", oldStatus).
			WithField("new_status", newStatus).
			Warn("Backward event status transition by authority override")
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return err
	}

	err = eventBus.Publish(ctx, entity.EventStatusChanged{
		Header:    entity.NewEventHeader(),
		EventID:   eventID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
	if err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
}

// SweepEventStatuses advances every event whose start or end time has
// elapsed: Upcoming -> Ongoing, Ongoing -> Finished. Forward only and
// idempotent; a second call with no elapsed time moves nothing.
func (r *PostgresRepository) SweepEventStatuses(ctx context.Context, authority string) (moved int, err error) {
	now := r.now()

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback()
			err = errors.Join(err, rollbackErr)
			return
		}
		err = tx.Commit()
	}()

	if err = r.authorizeTx(ctx, tx, authority); err != nil {
		return 0, err
	}

	type candidate struct {
		EventID   string             `db:"event_id"`
		Status    entity.EventStatus `db:"status"`
		StartTime time.Time          `db:"start_time"`
		EndTime   time.Time          `db:"end_time"`
	}

	var candidates []candidate
	err = tx.SelectContext(ctx, &candidates, `
		SELECT ei.event_id, ei.status, e.start_time, e.end_time
		FROM event_index ei
		JOIN events e ON e.event_id = ei.event_id
		WHERE (ei.status = $1 AND e.start_time <= $3)
		   OR (ei.status = $2 AND e.end_time <= $3)
		ORDER BY ei.event_id
		FOR UPDATE
	`, entity.EventStatusUpcoming, entity.EventStatusOngoing, now)
	if err != nil {
		return 0, fmt.Errorf("could not select sweep candidates: %w", err)
	}

	if len(candidates) == 0 {
		return 0, nil
	}

	eventBus, err := outbox.NewEventBusForTx(ctx, tx)
	if err != nil {
		return 0, err
	}

	for _, c := range candidates {
		newStatus := c.Status.NextByTime(c.StartTime, c.EndTime, now)
		if newStatus == c.Status {
			continue
		}

		if _, err = r.MoveEventTx(ctx, tx, c.EventID, newStatus); err != nil {
			return 0, err
		}

		err = eventBus.Publish(ctx, entity.EventStatusChanged{
			Header:    entity.NewEventHeader(),
			EventID:   c.EventID,
			OldStatus: c.Status,
			NewStatus: newStatus,
		})
		if err != nil {
			return 0, fmt.Errorf("could not publish event: %w", err)
		}

		moved++
	}

	metrics.EventsSwept.Add(float64(moved))

	return moved, nil
}

func (r *PostgresRepository) ListBucket(ctx context.Context, status entity.EventStatus) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT event_id FROM event_index WHERE status = $1 ORDER BY event_id
	`, status)
	return ids, err
}

func (r *PostgresRepository) BucketCounts(ctx context.Context) (map[entity.EventStatus]int, error) {
	type row struct {
		Status entity.EventStatus `db:"status"`
		Count  int                `db:"count"`
	}

	var rows []row
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count FROM event_index GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("could not count buckets: %w", err)
	}

	counts := map[entity.EventStatus]int{
		entity.EventStatusUpcoming: 0,
		entity.EventStatusOngoing:  0,
		entity.EventStatusFinished: 0,
	}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}

	return counts, nil
}

func (r *PostgresRepository) authorizeTx(ctx context.Context, tx *sqlx.Tx, authority string) error {
	var reg entity.Registry
	err := tx.GetContext(ctx, &reg, `
		SELECT authority, organization_count FROM registry
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrNotFound
		}
		return fmt.Errorf("could not get registry: %w", err)
	}

	if reg.Authority != authority {
		return entity.ErrUnauthorized
	}

	return nil
}

// MoveEventTx relocates an event id to the target bucket and keeps the
// event row's status in sync. Returns the bucket the id was found in.
func (r *PostgresRepository) MoveEventTx(
	ctx context.Context,
	tx *sqlx.Tx,
	eventID string,
	newStatus entity.EventStatus,
) (entity.EventStatus, error) {
	var oldStatus entity.EventStatus
	err := tx.GetContext(ctx, &oldStatus, `
		SELECT status FROM event_index WHERE event_id = $1 FOR UPDATE
	`, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", entity.ErrEventNotFound
		}
		return "", fmt.Errorf("could not get event bucket: %w", err)
	}

	if oldStatus == newStatus {
		return oldStatus, nil
	}

	var target int
	err = tx.GetContext(ctx, &target, `
		SELECT COUNT(*) FROM event_index WHERE status = $1
	`, newStatus)
	if err != nil {
		return "", fmt.Errorf("could not count target bucket: %w", err)
	}
	if target >= r.limits.MaxEventsPerCategory {
		return "", entity.ErrCategoryFull
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE event_index SET status = $1 WHERE event_id = $2
	`, newStatus, eventID)
	if err != nil {
		return "", fmt.Errorf("could not move event between buckets: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE events SET status = $1 WHERE event_id = $2
	`, newStatus, eventID)
	if err != nil {
		return "", fmt.Errorf("could not update event status: %w", err)
	}

	return oldStatus, nil
}

func backward(from, to entity.EventStatus) bool {
	rank := map[entity.EventStatus]int{
		entity.EventStatusUpcoming: 0,
		entity.EventStatusOngoing:  1,
		entity.EventStatusFinished: 2,
	}
	return rank[to] < rank[from]
}
