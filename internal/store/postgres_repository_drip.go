/**
 * @description
 * PostgreSQL queries for the drip campaign runner: polling due steps,
 * advancing enrollments, recording step executions, and mutating contact tags.
 * AdvanceDripEnrollment looks up the next step inline so that "advance" and
 * "complete when no steps remain" are one statement.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ticketrack/payments-service/internal/domain"
)

// ListDueDripSteps returns up to limit enrollment steps whose next_run_at has
// passed, on active enrollments of active campaigns, oldest due first.
func (r *PostgresRepository) ListDueDripSteps(ctx context.Context, limit int, now time.Time) ([]domain.DueDripStep, error) {
	query := `
		SELECT en.id, en.campaign_id, st.id, en.contact_id, c.organizer_id,
		       st.action_type, st.action_config, en.next_run_at
		FROM drip_enrollments en
		JOIN drip_campaigns c ON c.id = en.campaign_id
		JOIN drip_steps st ON st.campaign_id = en.campaign_id AND st.step_order = en.current_step
		WHERE en.status = 'active'
		  AND c.status = 'active'
		  AND en.next_run_at <= $1
		ORDER BY en.next_run_at ASC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []domain.DueDripStep
	for rows.Next() {
		var step domain.DueDripStep
		var config []byte
		err := rows.Scan(
			&step.EnrollmentID, &step.CampaignID, &step.StepID, &step.ContactID,
			&step.OrganizerID, &step.ActionType, &config, &step.DueAt,
		)
		if err != nil {
			return nil, err
		}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &step.ActionConfig); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step config: %w", err)
			}
		}
		due = append(due, step)
	}
	return due, rows.Err()
}

// FindContactByID retrieves a contact by its ID.
func (r *PostgresRepository) FindContactByID(ctx context.Context, contactID uuid.UUID) (*domain.Contact, error) {
	var contact domain.Contact
	query := `
		SELECT id, organizer_id, email, phone, full_name, email_opt_in, sms_opt_in,
		       whatsapp_opt_in, tags, created_at
		FROM contacts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, contactID).Scan(
		&contact.ID, &contact.OrganizerID, &contact.Email, &contact.Phone, &contact.FullName,
		&contact.EmailOptIn, &contact.SMSOptIn, &contact.WhatsAppOptIn, &contact.Tags, &contact.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return &contact, nil
}

// AdvanceDripEnrollment moves an enrollment past its current step. When a next
// step exists it becomes due after that step's delay; otherwise the enrollment
// is completed. The enrollment always advances, whatever the step's outcome.
func (r *PostgresRepository) AdvanceDripEnrollment(ctx context.Context, enrollmentID uuid.UUID, now time.Time) error {
	query := `
		UPDATE drip_enrollments en
		SET current_step = en.current_step + 1,
		    next_run_at = $2 + make_interval(hours => next.delay_hours),
		    updated_at = NOW()
		FROM drip_steps next
		WHERE en.id = $1
		  AND next.campaign_id = en.campaign_id
		  AND next.step_order = en.current_step + 1`
	tag, err := r.db.Exec(ctx, query, enrollmentID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No next step: the enrollment is done.
	completeQuery := `
		UPDATE drip_enrollments
		SET status = 'completed', current_step = current_step + 1, next_run_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`
	_, err = r.db.Exec(ctx, completeQuery, enrollmentID)
	return err
}

// RecordDripExecution writes the audit row for one executed step.
func (r *PostgresRepository) RecordDripExecution(ctx context.Context, enrollmentID, stepID uuid.UUID, status string, detail *string) error {
	query := `
		INSERT INTO drip_executions (id, enrollment_id, step_id, status, detail, executed_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`
	_, err := r.db.Exec(ctx, query, uuid.New(), enrollmentID, stepID, status, detail)
	return err
}

// AddContactTag appends a tag to a contact unless it is already present.
// tags may be NULL for contacts that never had one; ANY over a NULL array is
// NULL, so both sides coalesce it away.
func (r *PostgresRepository) AddContactTag(ctx context.Context, contactID uuid.UUID, tag string) error {
	query := `
		UPDATE contacts
		SET tags = array_append(COALESCE(tags, '{}'), $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(COALESCE(tags, '{}')))`
	_, err := r.db.Exec(ctx, query, contactID, tag)
	return err
}

// RemoveContactTag removes every occurrence of a tag from a contact.
func (r *PostgresRepository) RemoveContactTag(ctx context.Context, contactID uuid.UUID, tag string) error {
	query := `
		UPDATE contacts
		SET tags = array_remove(tags, $2), updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(ctx, query, contactID, tag)
	return err
}
