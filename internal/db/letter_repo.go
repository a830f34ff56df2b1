package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// LetterRepository provides data access for letter notifications. It is
// an adapter over the platform's notifications and services tables: the
// pipeline consumes it as the "notification store" and never issues SQL
// of its own.
type LetterRepository struct {
	db DBTX
}

// NewLetterRepository creates a LetterRepository backed by the given
// database connection (pool or transaction).
func NewLetterRepository(db DBTX) *LetterRepository {
	return &LetterRepository{db: db}
}

// notificationColumns is the select list shared by the single-row
// fetches. The service join hydrates crown, the international-letters
// permission and the branding filename.
const notificationColumns = `
	n.id, n.reference, n.service_id, n.status, n.key_type, n.postage,
	n.billable_units, n.international, n."to",
	n.template_subject, n.template_content, n.template_type,
	n.personalisation, n.reply_to_text,
	s.crown, s.allow_international_letters, COALESCE(s.letter_branding_filename, ''),
	n.created_at, n.updated_at`

func scanNotification(row pgx.Row) (*types.Notification, error) {
	var n types.Notification
	err := row.Scan(
		&n.ID, &n.Reference, &n.ServiceID, &n.Status, &n.KeyType, &n.Postage,
		&n.BillableUnits, &n.International, &n.To,
		&n.TemplateSubject, &n.TemplateContent, &n.TemplateType,
		&n.Personalisation, &n.ReplyToText,
		&n.Crown, &n.AllowInternationalLetters, &n.LetterBrandingFilename,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetByID fetches a letter notification by its system-generated id.
func (r *LetterRepository) GetByID(ctx context.Context, id string) (*types.Notification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications n
		 JOIN services s ON s.id = n.service_id
		 WHERE n.id = $1 AND n.notification_type = 'letter'`,
		id,
	)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundNotification,
			fmt.Sprintf("no letter notification with id %s", id), err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch notification", err)
	}
	return n, nil
}

// GetByReference fetches the letter notification owning a client-visible
// reference. Exactly one row must match: the reference is how an
// asynchronous scanner callback finds its way back to a notification, so
// zero or multiple matches is a referential corruption surfaced as a
// distinct error, never silently resolved.
func (r *LetterRepository) GetByReference(ctx context.Context, reference string) (*types.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications n
		 JOIN services s ON s.id = n.service_id
		 WHERE n.reference = $1 AND n.notification_type = 'letter'`,
		reference,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch notification by reference", err)
	}
	defer rows.Close()

	var matches []*types.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification", err)
		}
		matches = append(matches, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read notifications", err)
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, types.NewAppError(types.ErrCodeReferenceNotFound,
			fmt.Sprintf("no letter notification with reference %s", reference), nil)
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrCodeReferenceAmbiguous,
			fmt.Sprintf("reference %s matches %d notifications", reference, len(matches)),
			nil, map[string]any{"matches": len(matches)})
	}
}

// UpdateStatus moves a notification to the given status, honouring the
// transition table. Returns true when the row changed; false when the
// current status forbids the transition, which callers treat as a benign
// no-op (the terminal-state and duplicate-callback guard).
func (r *LetterRepository) UpdateStatus(ctx context.Context, id string, status types.Status) (bool, error) {
	var current types.Status
	err := r.db.QueryRow(ctx,
		`SELECT status FROM notifications WHERE id = $1`, id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, types.NewAppError(types.ErrCodeNotFoundNotification,
			fmt.Sprintf("no notification with id %s", id), err)
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to read notification status", err)
	}

	if !types.CanTransition(current, status) {
		return false, nil
	}

	// The WHERE clause re-checks the pre-state so a concurrent update
	// between the read and the write degrades to a no-op, not a
	// regression.
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, status, time.Now().UTC(), current,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update notification status", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetBillableUnits records the chargeable units for a letter.
func (r *LetterRepository) SetBillableUnits(ctx context.Context, id string, units int) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notifications SET billable_units = $2, updated_at = $3 WHERE id = $1`,
		id, units, time.Now().UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update billable units", err)
	}
	return nil
}

// UpdateByReference applies a scan/sanitise outcome to every notification
// owning the reference in one statement and returns the affected count.
// Callers enforce the exactly-one invariant on the returned count; the
// repository just reports what happened.
func (r *LetterRepository) UpdateByReference(ctx context.Context, reference string, update types.NotificationUpdate) (int64, error) {
	sql := `UPDATE notifications SET status = $2, billable_units = $3, updated_at = $4`
	args := []any{reference, update.Status, update.BillableUnits, time.Now().UTC()}

	if update.To != nil {
		args = append(args, *update.To)
		sql += fmt.Sprintf(`, "to" = $%d`, len(args))
	}
	if update.Postage != nil {
		args = append(args, *update.Postage)
		sql += fmt.Sprintf(`, postage = $%d`, len(args))
	}
	if update.International != nil {
		args = append(args, *update.International)
		sql += fmt.Sprintf(`, international = $%d`, len(args))
	}
	sql += ` WHERE reference = $1 AND notification_type = 'letter'`

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to update notifications by reference", err)
	}
	return tag.RowsAffected(), nil
}

// LettersToBePrinted returns every live-key letter still in created
// status for the postage class, created before the print-run deadline.
// Rows are ordered by service then creation time: collation grouping is
// order-sensitive, and this ordering is what makes batch membership
// reproducible across runs.
func (r *LetterRepository) LettersToBePrinted(ctx context.Context, deadline time.Time, postage types.Postage) ([]types.LetterForPrint, error) {
	rows, err := r.db.Query(ctx,
		`SELECT n.id, n.reference, n.service_id, n.postage, s.crown, n.created_at
		 FROM notifications n
		 JOIN services s ON s.id = n.service_id
		 WHERE n.notification_type = 'letter'
		   AND n.status = $1
		   AND n.key_type <> $2
		   AND n.postage = $3
		   AND n.created_at < $4
		 ORDER BY n.service_id, n.created_at`,
		types.StatusCreated, types.KeyTypeTest, postage, deadline,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch letters to be printed", err)
	}
	defer rows.Close()

	var letters []types.LetterForPrint
	for rows.Next() {
		var l types.LetterForPrint
		if err := rows.Scan(&l.NotificationID, &l.Reference, &l.ServiceID, &l.Postage, &l.Crown, &l.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan letter row", err)
		}
		letters = append(letters, l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read letter rows", err)
	}
	return letters, nil
}
